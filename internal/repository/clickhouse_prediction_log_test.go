package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	domrepo "AgriCast/internal/domain/repository"
	applogger "AgriCast/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickHousePredictionLogRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := newPredictionLog(db, "agricast", applogger.Nop())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO agricast.predictions (ts, kind, subject, value, confidence, payload)")).
		WithArgs(sqlmock.AnyArg(), "price", "SOJA", 101.5, 0.8, `{"trend":"BULLISH"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = log.Record(context.Background(), domrepo.PredictionRecord{
		Kind:       "price",
		Subject:    "SOJA",
		Value:      101.5,
		Confidence: 0.8,
		Payload:    map[string]string{"trend": "BULLISH"},
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClickHousePredictionLogWrapsInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("table is read only")
	mock.ExpectExec("INSERT INTO agricast.predictions").WillReturnError(boom)

	err = newPredictionLog(db, "agricast", applogger.Nop()).Record(context.Background(), domrepo.PredictionRecord{Kind: "yield"})
	assert.ErrorIs(t, err, boom)
}

func TestClickHousePredictionLogSchemaNamesTable(t *testing.T) {
	stmts := newPredictionLog(nil, "audit", nil).Schema()
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS audit.predictions")
}
