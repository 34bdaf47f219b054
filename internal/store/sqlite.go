package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tycoon/internal/game"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite keeps saves in a local database file.
type SQLite struct {
	conn *sqlx.DB
	log  *slog.Logger
	now  func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create save dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &SQLite{conn: conn, log: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		name TEXT PRIMARY KEY,
		turn INTEGER NOT NULL,
		max_turns INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		player_name TEXT NOT NULL,
		cash_micros INTEGER NOT NULL,
		net_worth_micros INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS save_firms (
		save_name TEXT NOT NULL REFERENCES saves(name) ON DELETE CASCADE,
		slot INTEGER NOT NULL,
		firm_id TEXT NOT NULL,
		name TEXT NOT NULL,
		ai INTEGER NOT NULL,
		cash_micros INTEGER NOT NULL,
		loan_micros INTEGER NOT NULL,
		net_worth_micros INTEGER NOT NULL,
		price_micros INTEGER NOT NULL,
		quality INTEGER NOT NULL,
		marketing INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		last_units_sold INTEGER NOT NULL,
		PRIMARY KEY (save_name, slot)
	);

	CREATE INDEX IF NOT EXISTS idx_saves_saved_at ON saves(saved_at);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Save writes the snapshot under name, replacing any earlier save of that name.
func (s *SQLite) Save(ctx context.Context, name string, snap game.Snapshot) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	rec, err := newRecord(name, snap, s.now())
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM save_firms WHERE save_name = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO saves (name, turn, max_turns, outcome, player_name, cash_micros, net_worth_micros, saved_at, state_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			turn = excluded.turn,
			max_turns = excluded.max_turns,
			outcome = excluded.outcome,
			player_name = excluded.player_name,
			cash_micros = excluded.cash_micros,
			net_worth_micros = excluded.net_worth_micros,
			saved_at = excluded.saved_at,
			state_json = excluded.state_json
	`, name, rec.info.Turn, rec.info.MaxTurns, string(rec.info.Outcome), rec.info.PlayerName,
		rec.info.CashMicros, rec.info.NetWorthMicros, rec.info.SavedAt.UnixNano(), string(rec.state)); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO save_firms
		(save_name, slot, firm_id, name, ai, cash_micros, loan_micros, net_worth_micros,
		 price_micros, quality, marketing, workers, last_units_sold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range rec.standings {
		ai := 0
		if st.AI {
			ai = 1
		}
		if _, err := stmt.ExecContext(ctx, name, st.Slot, st.FirmID, st.Name, ai, st.CashMicros, st.LoanMicros,
			st.NetWorthMicros, st.PriceMicros, st.Quality, st.Marketing, st.Workers, st.LastUnitsSold); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("game saved", "name", name, "turn", rec.info.Turn, "firms", len(rec.standings))
	return nil
}

func (s *SQLite) Load(ctx context.Context, name string) (game.Snapshot, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return game.Snapshot{}, err
	}
	var raw string
	err = s.conn.GetContext(ctx, &raw, `SELECT state_json FROM saves WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	return decodeState(name, []byte(raw))
}

type sqliteSaveRow struct {
	SaveInfo
	SavedAtNanos int64 `db:"saved_at_nanos"`
}

func (s *SQLite) List(ctx context.Context) ([]SaveInfo, error) {
	var rows []sqliteSaveRow
	err := s.conn.SelectContext(ctx, &rows, `
		SELECT name, turn, max_turns, outcome, player_name, cash_micros, net_worth_micros, saved_at AS saved_at_nanos
		FROM saves
		ORDER BY saved_at DESC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	out := make([]SaveInfo, 0, len(rows))
	for _, r := range rows {
		info := r.SaveInfo
		info.SavedAt = time.Unix(0, r.SavedAtNanos).UTC()
		out = append(out, info)
	}
	return out, nil
}

func (s *SQLite) Standings(ctx context.Context, name string) ([]Standing, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	var out []Standing
	err = s.conn.SelectContext(ctx, &out, `
		SELECT slot, firm_id, name, ai, cash_micros, loan_micros, net_worth_micros,
			price_micros, quality, marketing, workers, last_units_sold
		FROM save_firms
		WHERE save_name = ?
		ORDER BY net_worth_micros DESC, slot ASC
	`, name)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM save_firms WHERE save_name = ?`, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM saves WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSaveNotFound, name)
	}
	return tx.Commit()
}
