package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"flagcast/internal/platform"
	logx "flagcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./flagcast.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- challenges ----

func (s *sqliteStore) CreateChallenge(ctx context.Context, ch *platform.Challenge) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges(name, category, type, value, state, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?)`,
		ch.Name, ch.Category, ch.Type, ch.Value, string(ch.State),
		ch.CreatedAt.Format(time.RFC3339Nano), ch.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ch.ID = id
	return nil
}

func (s *sqliteStore) UpdateChallenge(ctx context.Context, ch *platform.Challenge) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE challenges SET name=?, category=?, type=?, value=?, state=?, updated_at=? WHERE id=?`,
		ch.Name, ch.Category, ch.Type, ch.Value, string(ch.State),
		ch.UpdatedAt.Format(time.RFC3339Nano), ch.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return platform.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) GetChallenge(ctx context.Context, id int64) (platform.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, type, value, state, created_at, updated_at FROM challenges WHERE id=?`, id)
	ch, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return platform.Challenge{}, platform.ErrNotFound
	}
	return ch, err
}

func (s *sqliteStore) ListChallenges(ctx context.Context) ([]platform.Challenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, type, value, state, created_at, updated_at FROM challenges ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []platform.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(r rowScanner) (platform.Challenge, error) {
	var (
		ch                      platform.Challenge
		state, created, updated string
	)
	if err := r.Scan(&ch.ID, &ch.Name, &ch.Category, &ch.Type, &ch.Value, &state, &created, &updated); err != nil {
		return platform.Challenge{}, err
	}
	ch.State = platform.State(state)
	ch.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	ch.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return ch, nil
}

// ---- solves ----

func (s *sqliteStore) InsertSolve(ctx context.Context, sv *platform.Solve) (bool, error) {
	// The UNIQUE(challenge_id, user_name) index makes repeats a no-op.
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO solves(id, challenge_id, user_name, created_at) VALUES(?,?,?,?)`,
		sv.ID, sv.ChallengeID, sv.UserName, sv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) CountSolves(ctx context.Context, challengeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM solves WHERE challenge_id=?`, challengeID).Scan(&n)
	return n, err
}

// ---- settings ----

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// ---- deliveries ----

func (s *sqliteStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(id, at, kind, target, outcome, reason, excerpt) VALUES(?,?,?,?,?,?,?)`,
		d.ID, d.At.Format(time.RFC3339Nano), d.Kind, nullStr(d.Target), d.Outcome, nullStr(d.Reason), nullStr(d.Excerpt),
	)
	return err
}

func (s *sqliteStore) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, COALESCE(kind,''), COALESCE(target,''), outcome, COALESCE(reason,''), COALESCE(excerpt,'')
		 FROM deliveries ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var at string
		if err := rows.Scan(&d.ID, &at, &d.Kind, &d.Target, &d.Outcome, &d.Reason, &d.Excerpt); err != nil {
			return nil, err
		}
		d.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM deliveries WHERE at < ?`, olderThan.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
