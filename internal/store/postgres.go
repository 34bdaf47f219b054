package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tycoon/internal/db"
	"tycoon/internal/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const saveRetries = 3

// Postgres keeps saves in a shared database so several API instances see
// the same slots.
type Postgres struct {
	db  *pgxpool.Pool
	log *slog.Logger
	now func() time.Time
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := NewPostgres(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: pool, log: logger, now: time.Now}
}

func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS tycoon;

		CREATE TABLE IF NOT EXISTS tycoon.saves (
			name TEXT PRIMARY KEY,
			turn INTEGER NOT NULL,
			max_turns INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			player_name TEXT NOT NULL,
			cash_micros BIGINT NOT NULL,
			net_worth_micros BIGINT NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tycoon.save_firms (
			save_name TEXT NOT NULL REFERENCES tycoon.saves(name) ON DELETE CASCADE,
			slot INTEGER NOT NULL,
			firm_id TEXT NOT NULL,
			name TEXT NOT NULL,
			ai BOOLEAN NOT NULL,
			cash_micros BIGINT NOT NULL,
			loan_micros BIGINT NOT NULL,
			net_worth_micros BIGINT NOT NULL,
			price_micros BIGINT NOT NULL,
			quality INTEGER NOT NULL,
			marketing INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			last_units_sold INTEGER NOT NULL,
			PRIMARY KEY (save_name, slot)
		);

		CREATE INDEX IF NOT EXISTS idx_saves_saved_at ON tycoon.saves(saved_at DESC);
	`)
	return err
}

func (s *Postgres) Save(ctx context.Context, name string, snap game.Snapshot) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	rec, err := newRecord(name, snap, s.now())
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := s.saveTx(ctx, rec)
		if err == nil {
			s.log.Debug("game saved", "name", name, "turn", rec.info.Turn, "firms", len(rec.standings))
			return nil
		}
		if !isSerializationError(err) || attempt >= saveRetries {
			return err
		}
		if err := sleepWithContext(ctx, time.Duration(attempt)*25*time.Millisecond); err != nil {
			return err
		}
	}
}

func (s *Postgres) saveTx(ctx context.Context, rec record) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	info := rec.info
	_, err = tx.Exec(ctx, `
		INSERT INTO tycoon.saves (name, turn, max_turns, outcome, player_name, cash_micros, net_worth_micros, saved_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			turn = EXCLUDED.turn,
			max_turns = EXCLUDED.max_turns,
			outcome = EXCLUDED.outcome,
			player_name = EXCLUDED.player_name,
			cash_micros = EXCLUDED.cash_micros,
			net_worth_micros = EXCLUDED.net_worth_micros,
			saved_at = EXCLUDED.saved_at,
			state = EXCLUDED.state
	`, info.Name, info.Turn, info.MaxTurns, string(info.Outcome), info.PlayerName,
		info.CashMicros, info.NetWorthMicros, info.SavedAt, string(rec.state))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tycoon.save_firms WHERE save_name = $1`, info.Name); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, st := range rec.standings {
		batch.Queue(`
			INSERT INTO tycoon.save_firms
				(save_name, slot, firm_id, name, ai, cash_micros, loan_micros, net_worth_micros,
				 price_micros, quality, marketing, workers, last_units_sold)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, info.Name, st.Slot, st.FirmID, st.Name, st.AI, st.CashMicros, st.LoanMicros, st.NetWorthMicros,
			st.PriceMicros, st.Quality, st.Marketing, st.Workers, st.LastUnitsSold)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Postgres) Load(ctx context.Context, name string) (game.Snapshot, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return game.Snapshot{}, err
	}
	var raw []byte
	err = s.db.QueryRow(ctx, `SELECT state FROM tycoon.saves WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	return decodeState(name, raw)
}

func (s *Postgres) List(ctx context.Context) ([]SaveInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, turn, max_turns, outcome, player_name, cash_micros, net_worth_micros, saved_at
		FROM tycoon.saves
		ORDER BY saved_at DESC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveInfo
	for rows.Next() {
		var info SaveInfo
		var outcome string
		if err := rows.Scan(&info.Name, &info.Turn, &info.MaxTurns, &outcome, &info.PlayerName,
			&info.CashMicros, &info.NetWorthMicros, &info.SavedAt); err != nil {
			return nil, err
		}
		info.Outcome = game.Outcome(outcome)
		info.SavedAt = info.SavedAt.UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Postgres) Standings(ctx context.Context, name string) ([]Standing, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT slot, firm_id, name, ai, cash_micros, loan_micros, net_worth_micros,
			price_micros, quality, marketing, workers, last_units_sold
		FROM tycoon.save_firms
		WHERE save_name = $1
		ORDER BY net_worth_micros DESC, slot ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.Slot, &st.FirmID, &st.Name, &st.AI, &st.CashMicros, &st.LoanMicros,
			&st.NetWorthMicros, &st.PriceMicros, &st.Quality, &st.Marketing, &st.Workers, &st.LastUnitsSold); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	return out, nil
}

func (s *Postgres) Delete(ctx context.Context, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM tycoon.saves WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
