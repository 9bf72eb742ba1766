// Package archive stores finished games with their PGN in PostgreSQL.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const schema = `CREATE TABLE IF NOT EXISTS finished_games (
    game_id      TEXT PRIMARY KEY,
    white_id     TEXT NOT NULL,
    black_id     TEXT NOT NULL,
    time_control TEXT NOT NULL,
    result       TEXT NOT NULL,
    reason       TEXT NOT NULL,
    moves_uci    JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    final_fen    TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL
)`

type Repository struct {
	db    *sql.DB
	rules *rules.Engine
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{db: db, rules: rules.NewEngine()}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record upserts a finished game.
func (r *Repository) Record(ctx context.Context, g chessdto.FinishedGame) error {
	if r == nil || r.db == nil {
		return nil
	}
	san, err := r.rules.SAN(g.MovesUCI)
	if err != nil {
		obslog.L().Warn("archive_san_failed", zap.String("game_id", g.GameID), zap.Error(err))
		san = nil
	}
	pgnResult := resultToPGN(g.Winner)
	pgn := buildPGN(g, san, pgnResult)

	movesRaw, _ := json.Marshal(g.MovesUCI)
	q := `INSERT INTO finished_games (
        game_id, white_id, black_id, time_control, result, reason,
        moves_uci, pgn, final_fen, started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
      ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_uci=EXCLUDED.moves_uci,
        pgn=EXCLUDED.pgn,
        final_fen=EXCLUDED.final_fen,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		g.GameID, g.WhiteID, g.BlackID, g.TimeControl,
		pgnResult, strings.TrimSpace(g.Reason),
		string(movesRaw), pgn, g.FinalFEN,
		g.StartedAt, g.EndedAt, g.Duration().Milliseconds(),
	)
	return err
}

func resultToPGN(winner string) string {
	switch rules.Color(strings.TrimSpace(winner)) {
	case rules.White:
		return "1-0"
	case rules.Black:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

func buildPGN(g chessdto.FinishedGame, san []string, pgnResult string) string {
	var b strings.Builder
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Cheese Arena\"]\n")
	b.WriteString("[Site \"cheese-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.WhiteID)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.BlackID)))
	if strings.TrimSpace(g.TimeControl) != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(g.TimeControl)))
	}
	if strings.TrimSpace(g.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(g.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(san); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(san[i])))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
