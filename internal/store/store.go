package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	OrganizationID string          `json:"organization_id,omitempty"`
	Status         model.RunStatus `json:"status,omitempty"`
	CreatedAfter   time.Time       `json:"created_after,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Offset         int             `json:"offset,omitempty"`
}

// SignalFilter specifies criteria for listing signals.
type SignalFilter struct {
	OrganizationID string             `json:"organization_id"`
	Status         model.SignalStatus `json:"status,omitempty"`
	TargetID       string             `json:"target_id,omitempty"`
	Subtype        model.PatternType  `json:"subtype,omitempty"`
	Limit          int                `json:"limit,omitempty"`
	Offset         int                `json:"offset,omitempty"`
}

// TargetFilter specifies criteria for listing intelligence targets.
type TargetFilter struct {
	OrganizationID string
	ActiveOnly     bool
	// Names restricts to targets whose name matches case-insensitively.
	Names []string
}

// SignalTx is the view of the signals table available inside WithSignalTx.
// All reads and writes happen under the (organization, target) lock.
type SignalTx interface {
	FindActiveSignals(ctx context.Context, orgID, targetID string, subtype model.PatternType) ([]model.Signal, error)
	InsertSignal(ctx context.Context, sig *model.Signal) error
	UpdateSignal(ctx context.Context, sig *model.Signal) error
}

// Store defines the persistence interface for the signal pipeline.
type Store interface {
	// Organizations
	UpsertOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)

	// Intelligence targets
	UpsertTarget(ctx context.Context, t *model.IntelligenceTarget) error
	ListTargets(ctx context.Context, filter TargetFilter) ([]model.IntelligenceTarget, error)
	UpdateTargetActivity(ctx context.Context, t *model.IntelligenceTarget) error
	SetTargetActive(ctx context.Context, id string, active bool) error

	// Signals
	WithSignalTx(ctx context.Context, orgID, targetID string, fn func(SignalTx) error) error
	GetSignal(ctx context.Context, orgID, id string) (*model.Signal, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error)
	UpdateSignalStatus(ctx context.Context, orgID, id string, status model.SignalStatus) error

	// Processed-article ledger
	FindProcessed(ctx context.Context, orgID string, urls []string, since time.Time) (map[string]bool, error)
	RecordProcessed(ctx context.Context, rows []model.ProcessedArticle) error

	// Stage analyses
	SaveStageAnalysis(ctx context.Context, orgID string, stage model.Stage, analysis *model.StageAnalysis) error
	GetStageAnalysis(ctx context.Context, orgID string, stage model.Stage) (*model.StageAnalysis, error)

	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// SignalLockKey is the serialization key for signal writes.
func SignalLockKey(orgID, targetID string) string {
	return "signal:" + orgID + ":" + targetID
}

func listLimit(n int) uint64 {
	if n <= 0 {
		return 100
	}
	return uint64(n)
}
