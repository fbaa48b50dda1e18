// Package store persists analysis runs in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/incident"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// The DDL sticks to types both drivers accept.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id          TEXT PRIMARY KEY,
    tenant          TEXT NOT NULL,
    generated_at    TEXT NOT NULL,
    duration_ms     BIGINT NOT NULL,
    sign_ins        INTEGER NOT NULL,
    legacy          INTEGER NOT NULL,
    audits          INTEGER NOT NULL,
    mailbox         INTEGER NOT NULL,
    anomalies       INTEGER NOT NULL,
    confidence      TEXT NOT NULL,
    settings        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant ON runs(tenant, generated_at);

CREATE TABLE IF NOT EXISTS baselines (
    run_id          TEXT NOT NULL REFERENCES runs(run_id),
    user_id         TEXT NOT NULL,
    primary_country TEXT NOT NULL,
    confidence      DOUBLE PRECISION NOT NULL,
    observations    INTEGER NOT NULL,
    suspicious      BOOLEAN NOT NULL,
    body            TEXT NOT NULL,
    PRIMARY KEY (run_id, user_id)
);

CREATE TABLE IF NOT EXISTS anomalies (
    run_id          TEXT NOT NULL REFERENCES runs(run_id),
    anomaly_id      TEXT NOT NULL,
    ordinal         INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    occurred_at     TEXT NOT NULL,
    severity        TEXT NOT NULL,
    body            TEXT NOT NULL,
    PRIMARY KEY (run_id, anomaly_id)
);

CREATE INDEX IF NOT EXISTS idx_anomalies_user ON anomalies(user_id, occurred_at);

CREATE TABLE IF NOT EXISTS incidents (
    run_id          TEXT PRIMARY KEY REFERENCES runs(run_id),
    home_country    TEXT NOT NULL,
    attack_start    TEXT,
    confidence      TEXT NOT NULL,
    dwell_days      INTEGER,
    body            TEXT NOT NULL
);
`

// Run is the stored summary row of one analysis run.
type Run struct {
	RunID       string              `json:"run_id"`
	Tenant      string              `json:"tenant"`
	GeneratedAt time.Time           `json:"generated_at"`
	Duration    time.Duration       `json:"duration"`
	Counts      analysis.Counts     `json:"counts"`
	Anomalies   int                 `json:"anomalies"`
	Confidence  incident.Confidence `json:"attack_start_confidence"`
}

// Store wraps a database handle.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies the schema. For sqlite3 the
// DSN is a file path; its parent directory is created.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// OpenConfig opens the store described by cfg.
func OpenConfig(cfg core.StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store dsn is empty")
	}
	return Open(cfg.Driver, cfg.DSN)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// SaveReport writes the run, its baselines, anomalies and incident in one
// transaction and returns the run ID.
func (s *Store) SaveReport(ctx context.Context, tenant string, r *analysis.Report) (string, error) {
	if r == nil {
		return "", errors.New("nil report")
	}
	if tenant == "" {
		tenant = r.Tenant
	}
	settings, err := json.Marshal(r.Settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (run_id, tenant, generated_at, duration_ms, sign_ins, legacy, audits, mailbox, anomalies, confidence, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RunID, tenant, formatTime(r.GeneratedAt), r.Duration.Milliseconds(),
		r.Counts.SignIns, r.Counts.Legacy, r.Counts.Audits, r.Counts.Mailbox,
		len(r.Anomalies), string(r.Incident.AttackStartConfidence), string(settings),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := s.insertBaselines(ctx, tx, r.RunID, r.Baselines); err != nil {
		return "", err
	}
	if err := s.insertAnomalies(ctx, tx, r.RunID, r.Anomalies); err != nil {
		return "", err
	}
	if err := s.insertIncident(ctx, tx, r.RunID, &r.Incident); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.RunID, nil
}

func (s *Store) insertBaselines(ctx context.Context, tx *sql.Tx, runID string, baselines map[string]baseline.UserBaseline) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO baselines (run_id, user_id, primary_country, confidence, observations, suspicious, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare baselines: %w", err)
	}
	defer stmt.Close()

	for _, user := range baseline.SortedUsers(baselines) {
		b := baselines[user]
		body, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode baseline %s: %w", user, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, user, b.PrimaryCountry, b.Confidence, b.TotalObservations, b.IsSuspicious, string(body)); err != nil {
			return fmt.Errorf("insert baseline %s: %w", user, err)
		}
	}
	return nil
}

func (s *Store) insertAnomalies(ctx context.Context, tx *sql.Tx, runID string, anomalies []anomaly.Anomaly) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO anomalies (run_id, anomaly_id, ordinal, kind, user_id, occurred_at, severity, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare anomalies: %w", err)
	}
	defer stmt.Close()

	for i, a := range anomalies {
		body, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode anomaly %s: %w", a.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, a.ID, i, string(a.Kind), a.UserID, formatTime(a.Timestamp), a.Severity.String(), string(body)); err != nil {
			return fmt.Errorf("insert anomaly %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *Store) insertIncident(ctx context.Context, tx *sql.Tx, runID string, it *incident.IncidentTimeline) error {
	body, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}
	var start sql.NullString
	if it.AttackStart != nil {
		start = sql.NullString{String: formatTime(it.AttackStart.Timestamp), Valid: true}
	}
	var dwell sql.NullInt64
	if it.DwellTimeDays != nil {
		dwell = sql.NullInt64{Int64: int64(*it.DwellTimeDays), Valid: true}
	}
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO incidents (run_id, home_country, attack_start, confidence, dwell_days, body)
		VALUES (?, ?, ?, ?, ?, ?)`),
		runID, it.HomeCountry, start, string(it.AttackStartConfidence), dwell, string(body),
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty tenant
// matches every tenant; limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, tenant string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT run_id, tenant, generated_at, duration_ms, sign_ins, legacy, audits, mailbox, anomalies, confidence FROM runs`
	args := []any{}
	if tenant != "" {
		query += ` WHERE tenant = ?`
		args = append(args, tenant)
	}
	query += ` ORDER BY generated_at DESC, run_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			generated string
			durMs     int64
			conf      string
		)
		if err := rows.Scan(&r.RunID, &r.Tenant, &generated, &durMs,
			&r.Counts.SignIns, &r.Counts.Legacy, &r.Counts.Audits, &r.Counts.Mailbox,
			&r.Anomalies, &conf); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generated)
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.Confidence = incident.Confidence(conf)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Anomalies returns a run's anomalies in their original order.
func (s *Store) Anomalies(ctx context.Context, runID string) ([]anomaly.Anomaly, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT body FROM anomalies WHERE run_id = ? ORDER BY ordinal`), runID)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	out := []anomaly.Anomaly{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		var a anomaly.Anomaly
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, fmt.Errorf("decode anomaly: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Baselines returns a run's per-user baselines.
func (s *Store) Baselines(ctx context.Context, runID string) (map[string]baseline.UserBaseline, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT user_id, body FROM baselines WHERE run_id = ?`), runID)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	out := map[string]baseline.UserBaseline{}
	for rows.Next() {
		var user, body string
		if err := rows.Scan(&user, &body); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		var b baseline.UserBaseline
		if err := json.Unmarshal([]byte(body), &b); err != nil {
			return nil, fmt.Errorf("decode baseline: %w", err)
		}
		out[user] = b
	}
	return out, rows.Err()
}

// Incident returns a run's reconstructed incident.
func (s *Store) Incident(ctx context.Context, runID string) (*incident.IncidentTimeline, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM incidents WHERE run_id = ?`), runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query incident: %w", err)
	}
	var it incident.IncidentTimeline
	if err := json.Unmarshal([]byte(body), &it); err != nil {
		return nil, fmt.Errorf("decode incident: %w", err)
	}
	return &it, nil
}

func (s *Store) exists(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM runs WHERE run_id = ?`), runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	return nil
}
