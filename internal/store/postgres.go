package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/db"
	"github.com/sells-group/signal-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	industry    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	competitors JSONB NOT NULL DEFAULT '[]',
	keywords    JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS intelligence_targets (
	id                  TEXT PRIMARY KEY,
	organization_id     TEXT NOT NULL REFERENCES organizations(id),
	name                TEXT NOT NULL,
	target_type         TEXT NOT NULL,
	priority            TEXT NOT NULL DEFAULT 'medium',
	monitoring_keywords JSONB NOT NULL DEFAULT '[]',
	accumulated_context JSONB NOT NULL DEFAULT '{}',
	baseline_metrics    JSONB NOT NULL DEFAULT '{}',
	activity_count      INTEGER NOT NULL DEFAULT 0,
	last_activity_at    TIMESTAMPTZ,
	active              BOOLEAN NOT NULL DEFAULT true,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	evidence             JSONB NOT NULL DEFAULT '[]',
	business_implication TEXT NOT NULL DEFAULT '',
	recommended_action   TEXT NOT NULL DEFAULT '',
	detection_count      INTEGER NOT NULL DEFAULT 1,
	first_detected_at    TIMESTAMPTZ NOT NULL,
	last_detected_at     TIMESTAMPTZ NOT NULL,
	status               TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_signals_match ON signals(organization_id, primary_target_id, subtype, status);
CREATE INDEX IF NOT EXISTS idx_signals_org_detected ON signals(organization_id, last_detected_at DESC);

CREATE TABLE IF NOT EXISTS processed_articles (
	organization_id TEXT NOT NULL,
	article_url     TEXT NOT NULL,
	stage           TEXT NOT NULL DEFAULT '',
	processed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (organization_id, article_url)
);

CREATE INDEX IF NOT EXISTS idx_processed_articles_at ON processed_articles(organization_id, processed_at);

CREATE TABLE IF NOT EXISTS stage_analyses (
	organization_id TEXT NOT NULL,
	stage           TEXT NOT NULL,
	analysis        JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (organization_id, stage)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	result          JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_org ON pipeline_runs(organization_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Organizations ---

func (s *PostgresStore) UpsertOrganization(ctx context.Context, org *model.Organization) error {
	competitors, err := jsonOrEmpty(org.Competitors, "[]")
	if err != nil {
		return eris.Wrap(err, "postgres: marshal competitors")
	}
	keywords, err := jsonOrEmpty(org.Keywords, "[]")
	if err != nil {
		return eris.Wrap(err, "postgres: marshal keywords")
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET name = $2, industry = $3, description = $4,
		 competitors = $5, keywords = $6, updated_at = $8`,
		org.ID, org.Name, org.Industry, org.Description, competitors, keywords, org.CreatedAt, org.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert organization %s", org.ID)
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org, err := scanOrganization(s.pool.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "organization %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get organization %s", id)
	}
	return org, nil
}

// --- Targets ---

func (s *PostgresStore) UpsertTarget(ctx context.Context, t *model.IntelligenceTarget) error {
	keywords, accumulated, baseline, err := targetJSON(t)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal target")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	err = s.pool.QueryRow(ctx,
		`INSERT INTO intelligence_targets (`+targetColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (organization_id, name) DO UPDATE SET target_type = $4, priority = $5,
		 monitoring_keywords = $6, active = $11, updated_at = $13
		 RETURNING id`,
		t.ID, t.OrganizationID, t.Name, string(t.TargetType), string(t.Priority), keywords, accumulated,
		baseline, t.ActivityCount, t.LastActivityAt, t.Active, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	return eris.Wrapf(err, "postgres: upsert target %s", t.Name)
}

func (s *PostgresStore) ListTargets(ctx context.Context, filter TargetFilter) ([]model.IntelligenceTarget, error) {
	q := psql.Select(targetColumns).From("intelligence_targets").
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
		return nil, eris.Wrap(err, "postgres: build list targets")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list targets")
	}
	defer rows.Close()

	var out []model.IntelligenceTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan target")
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list targets iterate")
}

func (s *PostgresStore) UpdateTargetActivity(ctx context.Context, t *model.IntelligenceTarget) error {
	_, accumulated, baseline, err := targetJSON(t)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal target activity")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE intelligence_targets SET accumulated_context = $1, baseline_metrics = $2,
		 activity_count = $3, last_activity_at = $4, updated_at = $5 WHERE id = $6`,
		accumulated, baseline, t.ActivityCount, t.LastActivityAt, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update target activity %s", t.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "target %s", t.ID)
	}
	return nil
}

func (s *PostgresStore) SetTargetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE intelligence_targets SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set target active %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "target %s", id)
	}
	return nil
}

// --- Signals ---

// WithSignalTx runs fn in a transaction holding an advisory lock on the
// (organization, target) key, so concurrent writers for the same key
// serialize across processes.
func (s *PostgresStore) WithSignalTx(ctx context.Context, orgID, targetID string, fn func(SignalTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin signal tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.AdvisoryXactLock(ctx, tx, SignalLockKey(orgID, targetID)); err != nil {
		return err
	}
	if err := fn(&pgSignalTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit signal tx")
}

type pgSignalTx struct {
	tx pgx.Tx
}

func (t *pgSignalTx) FindActiveSignals(ctx context.Context, orgID, targetID string, subtype model.PatternType) ([]model.Signal, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE organization_id = $1 AND primary_target_id = $2 AND subtype = $3 AND status = $4
		 ORDER BY first_detected_at, id`,
		orgID, targetID, string(subtype), string(model.SignalActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find active signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: find active signals iterate")
}

func (t *pgSignalTx) InsertSignal(ctx context.Context, sig *model.Signal) error {
	evidence, err := evidenceJSON(sig)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO signals (`+signalColumns+`) VALUES
		 ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		signalArgs(sig, evidence)...,
	)
	return eris.Wrapf(err, "postgres: insert signal %s", sig.ID)
}

func (t *pgSignalTx) UpdateSignal(ctx context.Context, sig *model.Signal) error {
	evidence, err := evidenceJSON(sig)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE signals SET description = $1, confidence_score = $2, significance_score = $3,
		 urgency = $4, impact_level = $5, evidence = $6, detection_count = $7, last_detected_at = $8
		 WHERE id = $9`,
		sig.Description, sig.ConfidenceScore, sig.SignificanceScore, string(sig.Urgency),
		string(sig.ImpactLevel), evidence, sig.DetectionCount, sig.LastDetectedAt.UTC(), sig.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update signal %s", sig.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "signal %s", sig.ID)
	}
	return nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, orgID, id string) (*model.Signal, error) {
	sig, err := scanSignal(s.pool.QueryRow(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE organization_id = $1 AND id = $2`, orgID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get signal %s", id)
	}
	return sig, nil
}

func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query, args, err := signalListQuery(psql, filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list signals")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}

func (s *PostgresStore) UpdateSignalStatus(ctx context.Context, orgID, id string, status model.SignalStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET status = $1 WHERE organization_id = $2 AND id = $3`,
		string(status), orgID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update signal status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	return nil
}

// --- Processed-article ledger ---

func (s *PostgresStore) FindProcessed(ctx context.Context, orgID string, urls []string, since time.Time) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(urls) == 0 {
		return seen, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT article_url FROM processed_articles
		 WHERE organization_id = $1 AND article_url = ANY($2) AND processed_at >= $3`,
		orgID, urls, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find processed")
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "postgres: scan processed")
		}
		seen[u] = true
	}
	return seen, eris.Wrap(rows.Err(), "postgres: find processed iterate")
}

var ledgerUpsert = db.UpsertConfig{
	Table:        "processed_articles",
	Columns:      []string{"organization_id", "article_url", "stage", "processed_at"},
	ConflictKeys: []string{"organization_id", "article_url"},
}

// RecordProcessed bulk-upserts ledger rows. Re-recording an article refreshes
// its processed_at so the dedup window slides forward.
func (s *PostgresStore) RecordProcessed(ctx context.Context, rows []model.ProcessedArticle) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.OrganizationID, r.ArticleURL, r.Stage, r.ProcessedAt.UTC()})
	}
	_, err := db.BulkUpsert(ctx, s.pool, ledgerUpsert, data)
	return eris.Wrap(err, "postgres: record processed")
}

// --- Stage analyses ---

func (s *PostgresStore) SaveStageAnalysis(ctx context.Context, orgID string, stage model.Stage, analysis *model.StageAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage analysis")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO stage_analyses (organization_id, stage, analysis, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (organization_id, stage) DO UPDATE SET analysis = $3, updated_at = $4`,
		orgID, string(stage), data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save stage analysis %s", stage)
}

// GetStageAnalysis returns nil with no error when nothing is stored.
func (s *PostgresStore) GetStageAnalysis(ctx context.Context, orgID string, stage model.Stage) (*model.StageAnalysis, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT analysis FROM stage_analyses WHERE organization_id = $1 AND stage = $2`,
		orgID, string(stage),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get stage analysis %s", stage)
	}
	var a model.StageAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stage analysis")
	}
	return &a, nil
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	if run.Status == "" {
		run.Status = model.RunStatusQueued
	}
	run.CreatedAt, run.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, organization_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.OrganizationID, string(run.Status), now, now,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		data, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, runID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args, err := runListQuery(psql, filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list runs")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- shared query builders ---

func signalListQuery(b sq.StatementBuilderType, f SignalFilter) sq.SelectBuilder {
	q := b.Select(signalColumns).From("signals").
		Where(sq.Eq{"organization_id": f.OrganizationID}).
		OrderBy("significance_score DESC", "last_detected_at DESC", "id").
		Limit(listLimit(f.Limit))
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.TargetID != "" {
		q = q.Where(sq.Eq{"primary_target_id": f.TargetID})
	}
	if f.Subtype != "" {
		q = q.Where(sq.Eq{"subtype": string(f.Subtype)})
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func runListQuery(b sq.StatementBuilderType, f RunFilter) sq.SelectBuilder {
	q := b.Select(runColumns).From("pipeline_runs").
		OrderBy("created_at DESC").
		Limit(listLimit(f.Limit))
	if f.OrganizationID != "" {
		q = q.Where(sq.Eq{"organization_id": f.OrganizationID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.CreatedAfter.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.CreatedAfter.UTC()})
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func targetJSON(t *model.IntelligenceTarget) (keywords, accumulated, baseline []byte, err error) {
	if keywords, err = jsonOrEmpty(t.MonitoringKeywords, "[]"); err != nil {
		return
	}
	if accumulated, err = json.Marshal(t.AccumulatedContext); err != nil {
		return
	}
	baseline, err = json.Marshal(t.BaselineMetrics)
	return
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
