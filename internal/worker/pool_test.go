package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	perr "recycle/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	id       string
	cycles   atomic.Int32
	closed   atomic.Bool
	failNext atomic.Bool
}

func (f *fakeRuntime) RunCycle(context.Context) error {
	f.cycles.Add(1)
	if f.failNext.Swap(false) {
		return perr.Fieldf("reset: widget has no field %q", "gone")
	}
	return nil
}

func (f *fakeRuntime) Close() error {
	f.closed.Store(true)
	return nil
}

type factory struct {
	mu    sync.Mutex
	built []*fakeRuntime
	fail  func(n int) error
}

func (f *factory) build(_ context.Context, id string) (*fakeRuntime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(len(f.built)); err != nil {
			return nil, err
		}
	}
	rt := &fakeRuntime{id: id}
	f.built = append(f.built, rt)
	return rt, nil
}

func (f *factory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func newPool(t *testing.T, size int, f *factory) *Pool[*fakeRuntime] {
	t.Helper()
	p, err := New(context.Background(), Config{Size: size, BackoffStart: time.Millisecond}, f.build)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestDo_RunsJobThenCycle(t *testing.T) {
	f := &factory{}
	p := newPool(t, 2, f)
	require.Equal(t, 2, f.count())

	var seen atomic.Value
	err := p.Do(context.Background(), func(_ context.Context, rt *fakeRuntime) error {
		seen.Store(rt.id)
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, seen.Load())

	p.Close()
	st := p.Stats()
	assert.Equal(t, Stats{Workers: 2, Jobs: 1, Cycles: 1}, st)
	for _, rt := range f.built {
		assert.True(t, rt.closed.Load())
	}
}

func TestDo_JobErrorKeepsWorker(t *testing.T) {
	f := &factory{}
	p := newPool(t, 1, f)

	boom := perr.InvalidArgf("bad input")
	err := p.Do(context.Background(), func(context.Context, *fakeRuntime) error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, p.Do(context.Background(), func(context.Context, *fakeRuntime) error { return nil }))
	p.Close()

	st := p.Stats()
	assert.Equal(t, uint64(2), st.Jobs)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Zero(t, st.Retired)
	assert.Equal(t, 1, f.count())
}

func TestDo_FailedCycleRetiresWorker(t *testing.T) {
	f := &factory{}
	p := newPool(t, 1, f)

	var first, second *fakeRuntime
	require.NoError(t, p.Do(context.Background(), func(_ context.Context, rt *fakeRuntime) error {
		first = rt
		rt.failNext.Store(true)
		return nil
	}))
	// the single worker only takes this job once it has been rebuilt
	require.NoError(t, p.Do(context.Background(), func(_ context.Context, rt *fakeRuntime) error {
		second = rt
		return nil
	}))

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.id, second.id)
	assert.True(t, first.closed.Load())
	assert.False(t, second.closed.Load())

	p.Close()
	st := p.Stats()
	assert.Equal(t, uint64(1), st.Retired)
	assert.Equal(t, uint64(1), st.Rebuilt)
	assert.Equal(t, uint64(2), st.Cycles)
}

func TestDo_PanicRetiresWorker(t *testing.T) {
	f := &factory{}
	p := newPool(t, 1, f)

	err := p.Do(context.Background(), func(context.Context, *fakeRuntime) error { panic("kaboom") })
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodePanic))
	assert.Contains(t, err.Error(), "kaboom")

	require.NoError(t, p.Do(context.Background(), func(context.Context, *fakeRuntime) error { return nil }))
	assert.Equal(t, 2, f.count())
	assert.True(t, f.built[0].closed.Load())
}

func TestRetire_RebuildRetriesWithBackoff(t *testing.T) {
	var failures atomic.Int32
	f := &factory{fail: func(n int) error {
		// first build succeeds, the next two attempts fail
		if n == 1 && failures.Add(1) <= 2 {
			return errors.New("config dir unreadable")
		}
		return nil
	}}
	p := newPool(t, 1, f)

	require.NoError(t, p.Do(context.Background(), func(_ context.Context, rt *fakeRuntime) error {
		rt.failNext.Store(true)
		return nil
	}))
	require.NoError(t, p.Do(context.Background(), func(context.Context, *fakeRuntime) error { return nil }))

	assert.Equal(t, int32(3), failures.Load())
	assert.Equal(t, 2, f.count())
	assert.Equal(t, uint64(1), p.Stats().Rebuilt)
}

func TestNew_BuildFailureClosesBuilt(t *testing.T) {
	boom := errors.New("no rules")
	f := &factory{fail: func(n int) error {
		if n == 2 {
			return boom
		}
		return nil
	}}
	_, err := New(context.Background(), Config{Size: 3}, f.build)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Equal(t, 2, f.count())
	for _, rt := range f.built {
		assert.True(t, rt.closed.Load())
	}

	_, err = New[*fakeRuntime](context.Background(), Config{}, nil)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestDo_ContextAndClose(t *testing.T) {
	f := &factory{}
	p := newPool(t, 1, f)

	gate := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func(context.Context, *fakeRuntime) error {
			close(started)
			<-gate
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, func(context.Context, *fakeRuntime) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)
	require.NoError(t, <-done)

	p.Close()
	p.Close()
	err = p.Do(context.Background(), func(context.Context, *fakeRuntime) error { return nil })
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))

	err = p.Do(context.Background(), nil)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestVisit_SeesCurrentRuntimes(t *testing.T) {
	f := &factory{}
	p := newPool(t, 3, f)

	ids := map[string]bool{}
	p.Visit(func(id string, rt *fakeRuntime) {
		assert.Equal(t, id, rt.id)
		ids[id] = true
	})
	assert.Len(t, ids, 3)
}
