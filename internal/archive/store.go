// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a local SQLite history of research runs and the
// records each run reported, so earlier findings can be listed and searched.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-research/pkg/types"
)

const defaultLimit = 20

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Run is one completed research run.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Topic       string
	SearchQuery string
	Model       string
	ReportPath  string
	Summary     string
	Insights    []string
	Records     []types.ResultRecord
}

// RunSummary is a run without its records, as listed by Runs.
type RunSummary struct {
	ID         string    `json:"id" yaml:"id"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	Topic      string    `json:"topic" yaml:"topic"`
	Model      string    `json:"model" yaml:"model"`
	ReportPath string    `json:"report_path" yaml:"report_path"`
	Records    int       `json:"records" yaml:"records"`
	Insights   int       `json:"insights" yaml:"insights"`
}

// Match is an archived record found by Search, with the run it came from.
type Match struct {
	RunID     string
	Topic     string
	CreatedAt time.Time
	Record    types.ResultRecord
}

// Store manages the archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database at path, creating its
// directory and schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			topic TEXT NOT NULL,
			search_query TEXT,
			model TEXT,
			report_path TEXT,
			summary TEXT,
			insights TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			abstract TEXT,
			date TEXT,
			authors TEXT,
			url TEXT,
			source TEXT NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores run and its records in one transaction. Saving a run id
// that already exists replaces it.
func (s *Store) Save(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("archived run has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}

	insightsJSON, _ := json.Marshal(run.Insights)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, topic, search_query, model, report_path, summary, insights)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Topic, run.SearchQuery,
		run.Model, run.ReportPath, run.Summary, string(insightsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, position, title, abstract, date, authors, url, source, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Records {
		authorsJSON, _ := json.Marshal(r.Authors)
		metaJSON, _ := json.Marshal(r.Metadata)
		_, err := stmt.ExecContext(ctx,
			run.ID, i, r.Title, r.Abstract, r.DateString(),
			string(authorsJSON), r.URL, r.Source, string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Runs lists the most recent runs first. limit <= 0 uses a default of 20.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.topic, r.model, r.report_path, r.insights,
			(SELECT count(*) FROM records WHERE run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs                  RunSummary
			created             string
			model, report, insJ sql.NullString
		)
		if err := rows.Scan(&rs.ID, &created, &rs.Topic, &model, &report, &insJ, &rs.Records); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rs.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		rs.Model = model.String
		rs.ReportPath = report.String
		rs.Insights = len(decodeStrings(insJ))
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Load returns the full run with id.
func (s *Store) Load(ctx context.Context, id string) (Run, error) {
	var (
		run                                 Run
		created                             string
		query, model, report, summary, insJ sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, topic, search_query, model, report_path, summary, insights
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &created, &run.Topic, &query, &model, &report, &summary, &insJ)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return Run{}, fmt.Errorf("looking up run: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	run.SearchQuery = query.String
	run.Model = model.String
	run.ReportPath = report.String
	run.Summary = summary.String
	run.Insights = decodeStrings(insJ)

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, abstract, date, authors, url, source, metadata
		 FROM records WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return Run{}, err
		}
		run.Records = append(run.Records, r)
	}
	return run, rows.Err()
}

// Search finds archived records whose title or abstract contains every
// whitespace-separated term of query, case-insensitively. Newest runs
// come first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, errors.New("search query is empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT ru.id, ru.topic, ru.created_at,
			re.title, re.abstract, re.date, re.authors, re.url, re.source, re.metadata
		FROM records re
		JOIN runs ru ON ru.id = re.run_id
		WHERE 1=1`)
	for _, term := range terms {
		qb.WriteString(` AND (re.title LIKE ? ESCAPE '\' OR re.abstract LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(term) + "%"
		args = append(args, pattern, pattern)
	}
	qb.WriteString(` ORDER BY ru.created_at DESC, re.position LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m       Match
			created string
		)
		r, err := scanRecord(rows, &m.RunID, &m.Topic, &created)
		if err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		m.Record = r
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanRecord scans prefix columns followed by the seven record columns.
func scanRecord(rows *sql.Rows, prefix ...any) (types.ResultRecord, error) {
	var (
		r                                      types.ResultRecord
		abstract, date, authors, url, metaJSON sql.NullString
	)
	dest := append(prefix, &r.Title, &abstract, &date, &authors, &url, &r.Source, &metaJSON)
	if err := rows.Scan(dest...); err != nil {
		return types.ResultRecord{}, fmt.Errorf("scanning record: %w", err)
	}
	r.Abstract = abstract.String
	r.URL = url.String
	if date.String != "" {
		r.Date, _ = time.Parse(types.DateLayout, date.String)
	}
	r.Authors = decodeStrings(authors)
	if metaJSON.Valid && metaJSON.String != "null" {
		json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
	return r, nil
}

func decodeStrings(ns sql.NullString) []string {
	if !ns.Valid {
		return nil
	}
	var out []string
	json.Unmarshal([]byte(ns.String), &out)
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
