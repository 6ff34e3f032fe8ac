package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

func TestNullFloat(t *testing.T) {
	assert.False(t, nullFloat(nil).Valid)

	v := -3.5
	n := nullFloat(&v)
	assert.True(t, n.Valid)
	assert.Equal(t, -3.5, n.Float64)
}

func TestSchema_Idempotent(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS value_bets")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS line_movements")
	assert.NotContains(t, schema, "DROP")
}

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(db), mock
}

func sampleBet(line *float64) events.ValueBet {
	at := time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC)
	return events.ValueBet{
		ID: "5f1c7a52-8f3e-4a0e-9d55-0d6f1c2b3a41", GameID: "g1", Sport: events.SportNBA,
		Bookmaker: "pinnacle", BetType: events.BetSpread, Selection: events.SelectionHome, Line: line,
		Odds: 2.1, FairOdds: 1.8, TrueProb: 0.55, ImpliedProb: 0.476, Edge: 0.074, ExpectedValue: 0.155,
		Confidence: 0.7, KellyFraction: 0.017, DetectedAt: at, ExpiresAt: at.Add(15 * time.Minute),
		IsActive: true,
	}
}

func TestUpsertValueBet(t *testing.T) {
	repo, mock := newMockRepo(t)
	line := -3.5
	vb := sampleBet(&line)

	mock.ExpectExec(`ON CONFLICT \(id\) DO UPDATE SET\s+is_active\s+= EXCLUDED\.is_active,\s+deactivation_reason = EXCLUDED\.deactivation_reason`).
		WithArgs(vb.ID, "g1", events.SportNBA, "pinnacle", "spread", events.SelectionHome, -3.5,
			2.1, 1.8, 0.55, 0.476, 0.074, 0.155, 0.7, 0.017, vb.DetectedAt, vb.ExpiresAt, true, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	vb.IsActive, vb.Reason = false, events.ReasonOddsMoved
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET")).
		WithArgs(vb.ID, "g1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), -3.5,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, events.ReasonOddsMoved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertValueBet(context.Background(), sampleBet(&line)))
	require.NoError(t, repo.UpsertValueBet(context.Background(), vb))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLineMovement_NullLines(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC)
	mv := events.LineMovement{
		GameID: "g1", Bookmaker: "bet365", BetType: events.BetMoneyline, Selection: events.SelectionAway,
		OldOdds: 2.0, NewOdds: 2.2, Delta: 0.2, Direction: "up", Significance: 1, Timestamp: at,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO line_movements")).
		WithArgs("g1", "bet365", "moneyline", events.SelectionAway, 2.0, 2.2, nil, nil, 0.2, "up", 1.0, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.InsertLineMovement(context.Background(), mv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLineMovement_Error(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO line_movements")).WillReturnError(errors.New("conn reset"))

	err := repo.InsertLineMovement(context.Background(), events.LineMovement{GameID: "g1"})
	assert.EqualError(t, err, "conn reset")
}

func TestValueBetsByGame(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC)
	cols := []string{"id", "game_id", "sport", "bookmaker", "bet_type", "selection", "line", "odds", "fair_odds",
		"true_prob", "implied_prob", "edge", "expected_value", "confidence", "kelly_fraction", "detected_at",
		"expires_at", "is_active", "deactivation_reason"}
	rows := sqlmock.NewRows(cols).
		AddRow("id-2", "g1", "NBA", "pinnacle", "total", "over", 210.5, 1.9, 1.7, 0.58, 0.526, 0.054, 0.1,
			0.65, 0.015, at.Add(time.Minute), at.Add(16*time.Minute), true, "").
		AddRow("id-1", "g1", "NBA", "bet365", "moneyline", "home", nil, 1.6, 1.4, 0.7, 0.625, 0.075, 0.12,
			0.7, 0.031, at, at.Add(15*time.Minute), false, events.ReasonExpired)

	mock.ExpectQuery(regexp.QuoteMeta("FROM value_bets")).
		WithArgs("g1", 10).
		WillReturnRows(rows)

	got, err := repo.ValueBetsByGame(context.Background(), "g1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Line)
	assert.Equal(t, 210.5, *got[0].Line)
	assert.Equal(t, events.BetTotal, got[0].BetType)
	assert.True(t, got[0].IsActive)

	assert.Nil(t, got[1].Line)
	assert.Equal(t, events.BetMoneyline, got[1].BetType)
	assert.False(t, got[1].IsActive)
	assert.Equal(t, events.ReasonExpired, got[1].Reason)
	assert.Equal(t, at, got[1].DetectedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS value_bets")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
