package internal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, r *ResourceCell, status ResourceStatus) ResourceState {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s := r.Peek(); s.Status == status {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "timed out waiting for resource status", "wanted %v, got %v", status, r.Peek())
	return ResourceState{}
}

func TestResourceFetchSuccess(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		return 42, nil
	}, 0, false)

	r.Fetch()
	state := waitForStatus(t, r, ResourceSuccess)
	assert.Equal(t, 42, state.Data)
	assert.Nil(t, state.Err)
}

func TestResourceFetchError(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	boom := errors.New("boom")
	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		return nil, boom
	}, 0, false)

	r.Fetch()
	state := waitForStatus(t, r, ResourceError)
	require.NotNil(t, state.Err)
	var fe *FetchError
	assert.ErrorAs(t, state.Err, &fe)
	assert.Equal(t, boom, fe.Cause)
}

func TestResourceSupersession(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	var mu sync.Mutex
	var started []string
	firstBlocked := make(chan struct{})

	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		mu.Lock()
		started = append(started, "first")
		mu.Unlock()
		<-firstBlocked
		<-ctx.Done() // the first fetch is cancelled by the second Fetch call
		return nil, ctx.Err()
	}, 0, false)

	r.Fetch()

	// wait for the first fetcher invocation to actually start before
	// superseding it
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(started)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	close(firstBlocked)
	r.fetcher = func(ctx context.Context) (any, error) { return "second", nil }
	r.Fetch()

	state := waitForStatus(t, r, ResourceSuccess)
	assert.Equal(t, "second", state.Data)
}

func TestResourceInvalidateDebounceSharesOneCompletionFuture(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	var calls atomic.Int32
	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "value", nil
	}, 50*time.Millisecond, false)

	var futures []<-chan Outcome
	for i := 0; i < 5; i++ {
		futures = append(futures, r.Invalidate())
		time.Sleep(5 * time.Millisecond)
	}

	for _, f := range futures {
		select {
		case outcome := <-f:
			assert.Equal(t, "value", outcome.Data)
			assert.Nil(t, outcome.Err)
		case <-time.After(time.Second):
			require.Fail(t, "timed out waiting for shared completion future")
		}
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestResourceFetchSupersededResolvesWaiterAsCancelled(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	firstBlocked := make(chan struct{})
	started := make(chan struct{}, 1)

	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		started <- struct{}{}
		<-firstBlocked
		<-ctx.Done()
		return nil, ctx.Err()
	}, 0, false)

	firstFuture := r.Fetch()
	<-started

	close(firstBlocked)
	r.fetcher = func(ctx context.Context) (any, error) { return "second", nil }
	secondFuture := r.Fetch()

	select {
	case outcome := <-firstFuture:
		require.NotNil(t, outcome.Err)
		var cerr *CancelledError
		assert.ErrorAs(t, outcome.Err, &cerr)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for superseded future to resolve")
	}

	select {
	case outcome := <-secondFuture:
		assert.Equal(t, "second", outcome.Data)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for superseding future to resolve")
	}
}

func TestResourceAutoFetchRunsOnConstruction(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	var calls atomic.Int32
	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 1, nil
	}, 0, true)

	waitForStatus(t, r, ResourceSuccess)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResourceWithoutAutoFetchStaysIdleUntilExplicitFetch(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	var calls atomic.Int32
	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 1, nil
	}, 0, false)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, ResourceIdle, r.Peek().Status)
}

func TestResourceRefetchesOnDependencyChangeRegardlessOfAutoFetch(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	src := NewCell(tr, 1, nil)

	var calls atomic.Int32
	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return src.Get(), nil
	}, 0, false)

	// first fetch must be started explicitly since autoFetch is false
	r.Fetch()
	waitForStatus(t, r, ResourceSuccess)
	assert.Equal(t, 1, r.Peek().Data)

	src.Set(2)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && r.Peek().Data != 2 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 2, r.Peek().Data)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestResourceCancelMovesToIdleWithLastKnownGood(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		return 1, nil
	}, 0, false)

	r.Fetch()
	waitForStatus(t, r, ResourceSuccess)
	assert.Equal(t, 1, r.Peek().Data)

	started := make(chan struct{}, 1)
	r.fetcher = func(ctx context.Context) (any, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	future := r.Fetch()
	<-started
	r.Cancel()

	state := r.Peek()
	assert.Equal(t, ResourceIdle, state.Status)
	assert.Equal(t, 1, state.Data)
	assert.Nil(t, state.Err)

	select {
	case outcome := <-future:
		require.NotNil(t, outcome.Err)
		var cerr *CancelledError
		assert.ErrorAs(t, outcome.Err, &cerr)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for cancelled future to resolve")
	}
}

func TestResourceMutateKeepsLastKnownGood(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	r := NewResourceCell(tr, ex, func(ctx context.Context) (any, error) {
		return 1, nil
	}, 0, false)

	r.Fetch()
	waitForStatus(t, r, ResourceSuccess)

	r.Mutate(func(current any) any { return current.(int) + 1 })
	assert.Equal(t, 2, r.Peek().Data)
}
