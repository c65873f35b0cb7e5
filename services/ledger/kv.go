package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/upb/ai-orchestrator/services/store"
)

// DefaultRetention keeps a day's counters long enough to be read across timezones
const DefaultRetention = 48 * time.Hour

// KVLedger stores counters in a store.Store under usage:{date}:{provider}:{field}
type KVLedger struct {
	kv        store.Store
	retention time.Duration
}

// NewKVLedger creates a ledger over kv. A non-positive retention uses DefaultRetention.
func NewKVLedger(kv store.Store, retention time.Duration) *KVLedger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &KVLedger{
		kv:        kv,
		retention: retention,
	}
}

func usageKey(date, provider, field string) string {
	return fmt.Sprintf("usage:%s:%s:%s", date, provider, field)
}

// Record increments the provider's counters
func (l *KVLedger) Record(ctx context.Context, date, provider string, cost float64, tokens int) error {
	if _, err := l.kv.IncrBy(ctx, usageKey(date, provider, "requests"), 1, l.retention); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if cost != 0 {
		if _, err := l.kv.IncrByFloat(ctx, usageKey(date, provider, "cost"), cost, l.retention); err != nil {
			return fmt.Errorf("failed to record cost: %w", err)
		}
	}
	if tokens != 0 {
		if _, err := l.kv.IncrBy(ctx, usageKey(date, provider, "tokens"), int64(tokens), l.retention); err != nil {
			return fmt.Errorf("failed to record tokens: %w", err)
		}
	}
	return nil
}

// Usage reads the counters of the listed providers
func (l *KVLedger) Usage(ctx context.Context, date string, providers []string) (DailyUsage, error) {
	usage := newDailyUsage(date)

	for _, provider := range providers {
		var totals Totals

		requests, err := l.readInt(ctx, usageKey(date, provider, "requests"))
		if err != nil {
			return usage, err
		}
		if requests == 0 {
			continue
		}
		totals.Requests = requests

		if totals.Cost, err = l.readFloat(ctx, usageKey(date, provider, "cost")); err != nil {
			return usage, err
		}
		if totals.Tokens, err = l.readInt(ctx, usageKey(date, provider, "tokens")); err != nil {
			return usage, err
		}

		usage.add(provider, totals)
	}

	return usage, nil
}

func (l *KVLedger) readInt(ctx context.Context, key string) (int64, error) {
	raw, err := l.kv.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	return value, nil
}

func (l *KVLedger) readFloat(ctx context.Context, key string) (float64, error) {
	raw, err := l.kv.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	return value, nil
}
