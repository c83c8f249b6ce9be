package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/repository/state"
)

var errTestCycle = errors.New("repository unreachable")

// fakePipeline promotes next to current unless err is set.
type fakePipeline struct {
	mu     sync.Mutex
	next   *deployment.Metadata
	err    error
	inputs []*deployment.Metadata
}

func (f *fakePipeline) Run(_ context.Context, app *deployment.Application) (*deployment.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, app.Current)

	if f.err != nil {
		return app, f.err
	}

	if f.next != nil {
		app.Latest = f.next
		app.Current = f.next
	}

	return app, nil
}

func (f *fakePipeline) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.inputs)
}

type fixedHealth deployment.HealthStatus

func (h fixedHealth) GetStatus(context.Context) deployment.HealthStatus {
	return deployment.HealthStatus(h)
}

type recordingReporter struct {
	reports []deployment.HealthStatus
}

func (r *recordingReporter) Report(status deployment.HealthStatus) {
	r.reports = append(r.reports, status)
}

type memoryRepository struct {
	snapshot *state.Snapshot
	err      error
}

func (m *memoryRepository) Load(context.Context) (*state.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}

	if m.snapshot == nil {
		return nil, state.ErrNotFound
	}

	return m.snapshot, nil
}

func (m *memoryRepository) Save(_ context.Context, snapshot *state.Snapshot) error {
	m.snapshot = snapshot
	return nil
}

func newTestSupervisor(p cycleRunner, repo state.Repository, blocklist *deployment.Blocklist) *Supervisor {
	s := newSupervisor(p, fixedHealth(deployment.HealthUp), repo, blocklist)
	s.running = func(pid int) bool { return pid == 4242 }

	return s
}

func TestRestore(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		snapshot *state.Snapshot
		want     *deployment.Metadata
	}{
		{
			name: "no state file",
		},
		{
			name: "running build",
			snapshot: &state.Snapshot{
				Current: &deployment.Metadata{Version: "1.2.0", ProcessID: 4242},
			},
			want: &deployment.Metadata{Version: "1.2.0", ProcessID: 4242},
		},
		{
			name: "process gone",
			snapshot: &state.Snapshot{
				Current: &deployment.Metadata{Version: "1.2.0", ProcessID: 9999},
			},
		},
		{
			name:     "nothing running",
			snapshot: &state.Snapshot{Blocklist: map[string]time.Time{"1.3.0": future}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestSupervisor(&fakePipeline{}, &memoryRepository{snapshot: tt.snapshot}, nil)

			require.NoError(t, s.Restore(context.Background()))
			require.Equal(t, tt.want, s.Current())
		})
	}
}

func TestRestoreBlocklist(t *testing.T) {
	t.Parallel()

	blocklist := deployment.NewBlocklist(time.Hour, nil)
	repo := &memoryRepository{snapshot: &state.Snapshot{
		Blocklist: map[string]time.Time{
			"1.3.0": time.Now().Add(time.Hour),
			"1.1.0": time.Now().Add(-time.Hour),
		},
	}}

	require.NoError(t, newTestSupervisor(&fakePipeline{}, repo, blocklist).Restore(context.Background()))
	require.True(t, blocklist.Contains("1.3.0"))
	require.False(t, blocklist.Contains("1.1.0"))
}

func TestRestoreLoadError(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{err: errTestCycle}

	err := newTestSupervisor(&fakePipeline{}, repo, nil).Restore(context.Background())
	require.ErrorIs(t, err, errTestCycle)
}

func TestRunCycleCarriesState(t *testing.T) {
	t.Parallel()

	launched := &deployment.Metadata{Version: "2.0.0", ProcessID: 4242}
	p := &fakePipeline{next: launched}
	reporter := &recordingReporter{}

	s := newTestSupervisor(p, &memoryRepository{}, nil)
	s.status = reporter

	require.NoError(t, s.RunCycle(context.Background()))
	require.Same(t, launched, s.Current())

	p.next = nil

	require.NoError(t, s.RunCycle(context.Background()))
	require.Same(t, launched, s.Current())
	require.Equal(t, []*deployment.Metadata{nil, launched}, p.inputs)
	require.Equal(t, []deployment.HealthStatus{deployment.HealthUp, deployment.HealthUp}, reporter.reports)
}

func TestRunCycleFailureKeepsCurrent(t *testing.T) {
	t.Parallel()

	current := &deployment.Metadata{Version: "1.0.0", ProcessID: 4242}
	p := &fakePipeline{err: errTestCycle}
	reporter := &recordingReporter{}

	s := newTestSupervisor(p, &memoryRepository{}, nil)
	s.current = current
	s.status = reporter

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, errTestCycle)
	require.Same(t, current, s.Current())
	require.Len(t, reporter.reports, 1)
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := &fakePipeline{}
		s := newTestSupervisor(p, &memoryRepository{}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- s.Schedule(ctx, "@every 1m")
		}()

		time.Sleep(150 * time.Second)
		cancel()

		require.NoError(t, <-done)
		require.Equal(t, 3, p.runs())
	})
}

func TestScheduleRejectsExpression(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(&fakePipeline{}, &memoryRepository{}, nil)

	require.Error(t, s.Schedule(context.Background(), "every minute"))
}
