package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domrepo "AgriCast/internal/domain/repository"
	pkgch "AgriCast/pkg/clickhouse"
	applogger "AgriCast/pkg/logger"
)

// ClickHousePredictionLog appends one audit row per served prediction.
type ClickHousePredictionLog struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHousePredictionLog(ch *pkgch.Client, l *applogger.Logger) *ClickHousePredictionLog {
	return newPredictionLog(ch.DB(), ch.Database(), l)
}

func newPredictionLog(db *sql.DB, database string, l *applogger.Logger) *ClickHousePredictionLog {
	return &ClickHousePredictionLog{db: db, table: database + ".predictions", l: l}
}

var _ domrepo.PredictionLog = (*ClickHousePredictionLog)(nil)

// Schema returns the DDL the log writes against.
func (s *ClickHousePredictionLog) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts         DateTime64(3),
            kind       LowCardinality(String),
            subject    String,
            value      Float64,
            confidence Float64,
            payload    String
        ) ENGINE = MergeTree
        ORDER BY (kind, ts)`, s.table),
	}
}

func (s *ClickHousePredictionLog) Record(ctx context.Context, rec domrepo.PredictionRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, kind, subject, value, confidence, payload) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, ts.UTC(), rec.Kind, rec.Subject, rec.Value, rec.Confidence, string(payload)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse prediction insert error",
				applogger.String("table", s.table),
				applogger.String("kind", rec.Kind),
				applogger.Error(err))
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}
