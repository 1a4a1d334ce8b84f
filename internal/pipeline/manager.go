package pipeline

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
)

// Runner executes and pre-checks pipeline runs.
type Runner interface {
	Run(ctx context.Context, req model.RunRequest) (*model.RunResult, error)
	Validate(ctx context.Context, req model.RunRequest) error
}

// Manager tracks in-flight runs so each can be cancelled on its own.
type Manager struct {
	runner Runner
	base   context.Context

	mu   sync.Mutex
	runs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// NewManager creates a Manager. Background runs derive from base, so
// cancelling base stops all of them.
func NewManager(base context.Context, r Runner) *Manager {
	return &Manager{runner: r, base: base, runs: make(map[string]context.CancelFunc)}
}

// Run executes req synchronously while keeping it cancellable by id.
func (m *Manager) Run(ctx context.Context, req model.RunRequest) (*model.RunResult, error) {
	req.RunID = cmp.Or(req.RunID, uuid.NewString())
	runCtx, cancel := context.WithCancel(ctx)
	m.track(req.RunID, cancel)
	defer m.untrack(req.RunID)
	return m.runner.Run(runCtx, req)
}

// Start validates req, then runs it in the background and returns its id.
func (m *Manager) Start(ctx context.Context, req model.RunRequest) (string, error) {
	if err := m.runner.Validate(ctx, req); err != nil {
		return "", err
	}
	req.RunID = cmp.Or(req.RunID, uuid.NewString())
	runCtx, cancel := context.WithCancel(m.base)
	m.track(req.RunID, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.untrack(req.RunID)
		res, err := m.runner.Run(runCtx, req)
		if err != nil {
			zap.L().Warn("pipeline: background run ended with error",
				zap.String("run_id", req.RunID),
				zap.String("organization_id", req.OrganizationID),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("pipeline: background run complete",
			zap.String("run_id", req.RunID),
			zap.Int("signals_created", res.SignalsCreated),
		)
	}()
	return req.RunID, nil
}

// Cancel cancels one in-flight run. It reports false for unknown ids.
func (m *Manager) Cancel(runID string) bool {
	m.mu.Lock()
	cancel, ok := m.runs[runID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the ids of in-flight runs, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Wait blocks until background runs have returned.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) track(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.runs[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	cancel, ok := m.runs[id]
	delete(m.runs, id)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}
