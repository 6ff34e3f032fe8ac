package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// schema cria as tabelas de arquivo quando ausentes
const schema = `
CREATE TABLE IF NOT EXISTS value_bets (
	id              UUID PRIMARY KEY,
	game_id         TEXT NOT NULL,
	sport           TEXT NOT NULL DEFAULT '',
	bookmaker       TEXT NOT NULL,
	bet_type        TEXT NOT NULL,
	selection       TEXT NOT NULL,
	line            DOUBLE PRECISION,
	odds            DOUBLE PRECISION NOT NULL,
	fair_odds       DOUBLE PRECISION NOT NULL,
	true_prob       DOUBLE PRECISION NOT NULL,
	implied_prob    DOUBLE PRECISION NOT NULL,
	edge            DOUBLE PRECISION NOT NULL,
	expected_value  DOUBLE PRECISION NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	kelly_fraction  DOUBLE PRECISION NOT NULL,
	detected_at     TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ NOT NULL,
	is_active       BOOLEAN NOT NULL,
	deactivation_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS value_bets_game_idx ON value_bets (game_id, detected_at);

CREATE TABLE IF NOT EXISTS line_movements (
	id           BIGSERIAL PRIMARY KEY,
	game_id      TEXT NOT NULL,
	bookmaker    TEXT NOT NULL,
	bet_type     TEXT NOT NULL,
	selection    TEXT NOT NULL,
	old_odds     DOUBLE PRECISION NOT NULL,
	new_odds     DOUBLE PRECISION NOT NULL,
	old_line     DOUBLE PRECISION,
	new_line     DOUBLE PRECISION,
	delta        DOUBLE PRECISION NOT NULL,
	direction    TEXT NOT NULL,
	significance DOUBLE PRECISION NOT NULL,
	moved_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS line_movements_game_idx ON line_movements (game_id, moved_at);
`

// PostgresRepo arquiva value bets e movimentos de linha no Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema aplica o DDL idempotente das tabelas de arquivo
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// UpsertValueBet grava a value bet; a mesma aposta volta a ser gravada quando desativada
// Utiliza ON CONFLICT por id para manter uma linha por aposta
func (r *PostgresRepo) UpsertValueBet(ctx context.Context, vb events.ValueBet) error {
	const q = `
		INSERT INTO value_bets
		  (id, game_id, sport, bookmaker, bet_type, selection, line, odds, fair_odds, true_prob,
		   implied_prob, edge, expected_value, confidence, kelly_fraction, detected_at, expires_at,
		   is_active, deactivation_reason)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
		  is_active           = EXCLUDED.is_active,
		  deactivation_reason = EXCLUDED.deactivation_reason
	`
	_, err := r.DB.ExecContext(ctx, q,
		vb.ID, vb.GameID, vb.Sport, vb.Bookmaker, string(vb.BetType), vb.Selection, nullFloat(vb.Line),
		vb.Odds, vb.FairOdds, vb.TrueProb, vb.ImpliedProb, vb.Edge, vb.ExpectedValue, vb.Confidence,
		vb.KellyFraction, vb.DetectedAt, vb.ExpiresAt, vb.IsActive, vb.Reason,
	)
	return err
}

// InsertLineMovement insere um movimento no histórico (line_movements)
func (r *PostgresRepo) InsertLineMovement(ctx context.Context, mv events.LineMovement) error {
	const q = `
		INSERT INTO line_movements
		  (game_id, bookmaker, bet_type, selection, old_odds, new_odds, old_line, new_line,
		   delta, direction, significance, moved_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	_, err := r.DB.ExecContext(ctx, q,
		mv.GameID, mv.Bookmaker, string(mv.BetType), mv.Selection, mv.OldOdds, mv.NewOdds,
		nullFloat(mv.OldLine), nullFloat(mv.NewLine), mv.Delta, mv.Direction, mv.Significance, mv.Timestamp,
	)
	return err
}

// ValueBetsByGame lista o histórico arquivado de uma partida, mais recentes primeiro
func (r *PostgresRepo) ValueBetsByGame(ctx context.Context, gameID string, limit int) ([]events.ValueBet, error) {
	const q = `
		SELECT id, game_id, sport, bookmaker, bet_type, selection, line, odds, fair_odds, true_prob,
		       implied_prob, edge, expected_value, confidence, kelly_fraction, detected_at, expires_at,
		       is_active, deactivation_reason
		FROM value_bets
		WHERE game_id = $1
		ORDER BY detected_at DESC
		LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, q, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.ValueBet
	for rows.Next() {
		var vb events.ValueBet
		var betType string
		var line sql.NullFloat64
		if err := rows.Scan(&vb.ID, &vb.GameID, &vb.Sport, &vb.Bookmaker, &betType, &vb.Selection, &line,
			&vb.Odds, &vb.FairOdds, &vb.TrueProb, &vb.ImpliedProb, &vb.Edge, &vb.ExpectedValue,
			&vb.Confidence, &vb.KellyFraction, &vb.DetectedAt, &vb.ExpiresAt, &vb.IsActive, &vb.Reason); err != nil {
			return nil, err
		}
		vb.BetType = events.BetType(betType)
		if line.Valid {
			v := line.Float64
			vb.Line = &v
		}
		out = append(out, vb)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
