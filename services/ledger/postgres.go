package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PostgresLedger stores daily usage in the ai_usage_daily table
type PostgresLedger struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresLedger creates a PostgreSQL-backed ledger
func NewPostgresLedger(db *sql.DB, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Record upserts the provider's row for date
func (l *PostgresLedger) Record(ctx context.Context, date, provider string, cost float64, tokens int) error {
	query := `
		INSERT INTO ai_usage_daily (usage_date, provider, requests, cost, tokens, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (usage_date, provider)
		DO UPDATE SET
			requests = ai_usage_daily.requests + 1,
			cost = ai_usage_daily.cost + EXCLUDED.cost,
			tokens = ai_usage_daily.tokens + EXCLUDED.tokens,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := l.db.ExecContext(ctx, query, date, provider, cost, tokens, l.now()); err != nil {
		return fmt.Errorf("failed to upsert usage: %w", err)
	}
	return nil
}

// Usage returns every provider row for date. The providers filter is not
// needed here since the table can be enumerated; when non-empty it narrows the result.
func (l *PostgresLedger) Usage(ctx context.Context, date string, providers []string) (DailyUsage, error) {
	usage := newDailyUsage(date)

	query := `
		SELECT provider, requests, cost, tokens
		FROM ai_usage_daily
		WHERE usage_date = $1
		ORDER BY provider
	`

	rows, err := l.db.QueryContext(ctx, query, date)
	if err != nil {
		return usage, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(providers))
	for _, p := range providers {
		wanted[p] = true
	}

	for rows.Next() {
		var (
			provider string
			totals   Totals
		)
		if err := rows.Scan(&provider, &totals.Requests, &totals.Cost, &totals.Tokens); err != nil {
			return usage, fmt.Errorf("failed to scan usage: %w", err)
		}
		if len(wanted) > 0 && !wanted[provider] {
			continue
		}
		usage.add(provider, totals)
	}

	if err := rows.Err(); err != nil {
		return usage, fmt.Errorf("failed to iterate usage: %w", err)
	}

	l.logger.Debug("usage loaded",
		zap.String("date", date),
		zap.Int("providers", len(usage.PerProvider)),
		zap.Float64("cost", usage.Cost))

	return usage, nil
}
