package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/signal-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is meant for
// local development and tests; signal writes are serialized in-process.
type SQLiteStore struct {
	db *sql.DB
	// writeMu makes WithSignalTx a single-writer section.
	writeMu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// One connection keeps the pragmas in force and avoids SQLITE_BUSY
	// between pool connections.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	industry    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	competitors TEXT NOT NULL DEFAULT '[]',
	keywords    TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS intelligence_targets (
	id                  TEXT PRIMARY KEY,
	organization_id     TEXT NOT NULL REFERENCES organizations(id),
	name                TEXT NOT NULL,
	target_type         TEXT NOT NULL,
	priority            TEXT NOT NULL DEFAULT 'medium',
	monitoring_keywords TEXT NOT NULL DEFAULT '[]',
	accumulated_context TEXT NOT NULL DEFAULT '{}',
	baseline_metrics    TEXT NOT NULL DEFAULT '{}',
	activity_count      INTEGER NOT NULL DEFAULT 0,
	last_activity_at    DATETIME,
	active              BOOLEAN NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	UNIQUE (organization_id, name)
);

CREATE TABLE IF NOT EXISTS signals (
	id                   TEXT PRIMARY KEY,
	organization_id      TEXT NOT NULL REFERENCES organizations(id),
	signal_type          TEXT NOT NULL,
	subtype              TEXT NOT NULL,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	primary_target_id    TEXT NOT NULL DEFAULT '',
	confidence_score     INTEGER NOT NULL,
	significance_score   INTEGER NOT NULL,
	urgency              TEXT NOT NULL,
	impact_level         TEXT NOT NULL,
	time_horizon         TEXT NOT NULL DEFAULT '',
	evidence             TEXT NOT NULL DEFAULT '[]',
	business_implication TEXT NOT NULL DEFAULT '',
	recommended_action   TEXT NOT NULL DEFAULT '',
	detection_count      INTEGER NOT NULL DEFAULT 1,
	first_detected_at    DATETIME NOT NULL,
	last_detected_at     DATETIME NOT NULL,
	status               TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_signals_match ON signals(organization_id, primary_target_id, subtype, status);

CREATE TABLE IF NOT EXISTS processed_articles (
	organization_id TEXT NOT NULL,
	article_url     TEXT NOT NULL,
	stage           TEXT NOT NULL DEFAULT '',
	processed_at    DATETIME NOT NULL,
	PRIMARY KEY (organization_id, article_url)
);

CREATE TABLE IF NOT EXISTS stage_analyses (
	organization_id TEXT NOT NULL,
	stage           TEXT NOT NULL,
	analysis        TEXT NOT NULL,
	updated_at      DATETIME NOT NULL,
	PRIMARY KEY (organization_id, stage)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	result          TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_org ON pipeline_runs(organization_id, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Organizations ---

func (s *SQLiteStore) UpsertOrganization(ctx context.Context, org *model.Organization) error {
	competitors, err := jsonOrEmpty(org.Competitors, "[]")
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal competitors")
	}
	keywords, err := jsonOrEmpty(org.Keywords, "[]")
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, industry = excluded.industry,
		 description = excluded.description, competitors = excluded.competitors,
		 keywords = excluded.keywords, updated_at = excluded.updated_at`,
		org.ID, org.Name, org.Industry, org.Description, string(competitors), string(keywords),
		org.CreatedAt.UTC(), org.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert organization %s", org.ID)
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "organization %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get organization %s", id)
	}
	return org, nil
}

// --- Targets ---

func (s *SQLiteStore) UpsertTarget(ctx context.Context, t *model.IntelligenceTarget) error {
	keywords, accumulated, baseline, err := targetJSON(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal target")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO intelligence_targets (`+targetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (organization_id, name) DO UPDATE SET target_type = excluded.target_type,
		 priority = excluded.priority, monitoring_keywords = excluded.monitoring_keywords,
		 active = excluded.active, updated_at = excluded.updated_at
		 RETURNING id`,
		t.ID, t.OrganizationID, t.Name, string(t.TargetType), string(t.Priority), string(keywords),
		string(accumulated), string(baseline), t.ActivityCount, nullTime(t.LastActivityAt), t.Active,
		t.CreatedAt.UTC(), t.UpdatedAt,
	).Scan(&t.ID)
	return eris.Wrapf(err, "sqlite: upsert target %s", t.Name)
}

func (s *SQLiteStore) ListTargets(ctx context.Context, filter TargetFilter) ([]model.IntelligenceTarget, error) {
	q := sq.Select(targetColumns).From("intelligence_targets").
		Where(sq.Eq{"organization_id": filter.OrganizationID}).
		OrderBy("name")
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	if len(filter.Names) > 0 {
		q = q.Where(sq.Eq{"lower(name)": lowerAll(filter.Names)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list targets")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list targets")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.IntelligenceTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan target")
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list targets iterate")
}

func (s *SQLiteStore) UpdateTargetActivity(ctx context.Context, t *model.IntelligenceTarget) error {
	_, accumulated, baseline, err := targetJSON(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal target activity")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE intelligence_targets SET accumulated_context = ?, baseline_metrics = ?,
		 activity_count = ?, last_activity_at = ?, updated_at = ? WHERE id = ?`,
		string(accumulated), string(baseline), t.ActivityCount, nullTime(t.LastActivityAt), time.Now().UTC(), t.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update target activity %s", t.ID)
	}
	return checkRowsAffected(res, "target", t.ID)
}

func (s *SQLiteStore) SetTargetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE intelligence_targets SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set target active %s", id)
	}
	return checkRowsAffected(res, "target", id)
}

// --- Signals ---

// WithSignalTx runs fn inside a transaction while holding the store-wide
// writer lock.
func (s *SQLiteStore) WithSignalTx(ctx context.Context, _, _ string, fn func(SignalTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin signal tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteSignalTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit signal tx")
}

type sqliteSignalTx struct {
	tx *sql.Tx
}

func (t *sqliteSignalTx) FindActiveSignals(ctx context.Context, orgID, targetID string, subtype model.PatternType) ([]model.Signal, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE organization_id = ? AND primary_target_id = ? AND subtype = ? AND status = ?
		 ORDER BY first_detected_at, id`,
		orgID, targetID, string(subtype), string(model.SignalActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find active signals")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: find active signals iterate")
}

func (t *sqliteSignalTx) InsertSignal(ctx context.Context, sig *model.Signal) error {
	evidence, err := evidenceJSON(sig)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO signals (`+signalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signalArgs(sig, string(evidence))...,
	)
	return eris.Wrapf(err, "sqlite: insert signal %s", sig.ID)
}

func (t *sqliteSignalTx) UpdateSignal(ctx context.Context, sig *model.Signal) error {
	evidence, err := evidenceJSON(sig)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE signals SET description = ?, confidence_score = ?, significance_score = ?,
		 urgency = ?, impact_level = ?, evidence = ?, detection_count = ?, last_detected_at = ?
		 WHERE id = ?`,
		sig.Description, sig.ConfidenceScore, sig.SignificanceScore, string(sig.Urgency),
		string(sig.ImpactLevel), string(evidence), sig.DetectionCount, sig.LastDetectedAt.UTC(), sig.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update signal %s", sig.ID)
	}
	return checkRowsAffected(res, "signal", sig.ID)
}

func (s *SQLiteStore) GetSignal(ctx context.Context, orgID, id string) (*model.Signal, error) {
	sig, err := scanSignal(s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE organization_id = ? AND id = ?`, orgID, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get signal %s", id)
	}
	return sig, nil
}

func (s *SQLiteStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query, args, err := signalListQuery(sq.StatementBuilder, filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list signals")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

func (s *SQLiteStore) UpdateSignalStatus(ctx context.Context, orgID, id string, status model.SignalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET status = ? WHERE organization_id = ? AND id = ?`,
		string(status), orgID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update signal status %s", id)
	}
	return checkRowsAffected(res, "signal", id)
}

// --- Processed-article ledger ---

func (s *SQLiteStore) FindProcessed(ctx context.Context, orgID string, urls []string, since time.Time) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(urls) == 0 {
		return seen, nil
	}
	query, args, err := sq.Select("article_url").From("processed_articles").
		Where(sq.Eq{"organization_id": orgID, "article_url": urls}).
		Where(sq.GtOrEq{"processed_at": since.UTC()}).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build find processed")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find processed")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processed")
		}
		seen[u] = true
	}
	return seen, eris.Wrap(rows.Err(), "sqlite: find processed iterate")
}

func (s *SQLiteStore) RecordProcessed(ctx context.Context, rows []model.ProcessedArticle) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record processed")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO processed_articles (organization_id, article_url, stage, processed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (organization_id, article_url) DO UPDATE SET stage = excluded.stage, processed_at = excluded.processed_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record processed")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.OrganizationID, r.ArticleURL, r.Stage, r.ProcessedAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: record processed %s", r.ArticleURL)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit record processed")
}

// --- Stage analyses ---

func (s *SQLiteStore) SaveStageAnalysis(ctx context.Context, orgID string, stage model.Stage, analysis *model.StageAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage analysis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stage_analyses (organization_id, stage, analysis, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (organization_id, stage) DO UPDATE SET analysis = excluded.analysis, updated_at = excluded.updated_at`,
		orgID, string(stage), string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save stage analysis %s", stage)
}

func (s *SQLiteStore) GetStageAnalysis(ctx context.Context, orgID string, stage model.Stage) (*model.StageAnalysis, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT analysis FROM stage_analyses WHERE organization_id = ? AND stage = ?`,
		orgID, string(stage),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get stage analysis %s", stage)
	}
	var a model.StageAnalysis
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stage analysis")
	}
	return &a, nil
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	if run.Status == "" {
		run.Status = model.RunStatusQueued
	}
	run.CreatedAt, run.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, organization_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.OrganizationID, string(run.Status), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(data), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, runID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args, err := runListQuery(sq.StatementBuilder, filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list runs")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
