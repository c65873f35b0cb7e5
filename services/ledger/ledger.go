// Package ledger keeps per-day, per-provider usage counters: requests, cost and tokens.
package ledger

import (
	"context"
	"time"
)

// DateLayout is the bucket key format. One bucket per calendar day.
const DateLayout = "2006-01-02"

// Totals is the usage recorded for one provider on one day
type Totals struct {
	Requests int64   `json:"requests"`
	Cost     float64 `json:"cost"`
	Tokens   int64   `json:"tokens"`
}

// DailyUsage aggregates a day across providers
type DailyUsage struct {
	Date        string            `json:"date"`
	Requests    int64             `json:"requests"`
	Cost        float64           `json:"cost"`
	Tokens      int64             `json:"tokens"`
	PerProvider map[string]Totals `json:"per_provider"`
}

// Ledger records usage. Counters only grow within a day.
type Ledger interface {
	// Record adds one request with its cost and tokens to the provider's bucket
	Record(ctx context.Context, date, provider string, cost float64, tokens int) error

	// Usage returns the day's totals. Backends that cannot enumerate
	// providers only report the ones listed.
	Usage(ctx context.Context, date string, providers []string) (DailyUsage, error)
}

// DayKey returns the bucket for now in loc (UTC when loc is nil)
func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

func newDailyUsage(date string) DailyUsage {
	return DailyUsage{
		Date:        date,
		PerProvider: make(map[string]Totals),
	}
}

func (u *DailyUsage) add(provider string, totals Totals) {
	u.PerProvider[provider] = totals
	u.Requests += totals.Requests
	u.Cost += totals.Cost
	u.Tokens += totals.Tokens
}
