package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/types"
)

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	r := New()
	id := NewRequestID()
	require.NotEmpty(t, id)

	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register(id, types.AgentClaude, cancel, "note"))

	info, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.AgentClaude, info.CLIType)
	assert.Equal(t, 1, r.ActiveCount())
	assert.True(t, r.HasActive())

	assert.True(t, r.Unregister(id))
	assert.False(t, r.Contains(id))
	assert.Equal(t, 0, r.TotalCount())
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := New()
	id := "dup-1"
	_, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Register(id, types.AgentCodex, cancel, ""))
	err := r.Register(id, types.AgentCodex, cancel, "")
	assert.Error(t, err)
}

func TestCancelInvokesCancelFunc(t *testing.T) {
	r := New()
	id := "req-cancel"
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register(id, types.AgentGemini, cancel, ""))

	assert.True(t, r.Cancel(id))
	assert.Error(t, ctx.Err())

	// Already-done requests are not cancelled again.
	r.MarkDone(id)
	assert.False(t, r.Cancel(id))
}

func TestCancelAllCountsActiveOnly(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		_, cancel := context.WithCancel(context.Background())
		require.NoError(t, r.Register(NewRequestID(), types.AgentOpencode, cancel, ""))
	}
	doneID := NewRequestID()
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register(doneID, types.AgentOpencode, cancel, ""))
	r.MarkDone(doneID)

	assert.Equal(t, 3, r.ActiveCount())
	assert.Equal(t, 4, r.TotalCount())
	assert.Equal(t, 3, r.CancelAll())
}

func TestListActiveSortedByCreatedAt(t *testing.T) {
	r := New()
	var ids []string
	for i := 0; i < 5; i++ {
		id := NewRequestID()
		_, cancel := context.WithCancel(context.Background())
		require.NoError(t, r.Register(id, types.AgentClaude, cancel, ""))
		ids = append(ids, id)
	}

	active := r.ListActive()
	require.Len(t, active, 5)
	for i := 1; i < len(active); i++ {
		assert.False(t, active[i].CreatedAt.Before(active[i-1].CreatedAt))
	}
}

func TestCleanupDoneRemovesOnlyDone(t *testing.T) {
	r := New()
	_, cancelA := context.WithCancel(context.Background())
	_, cancelB := context.WithCancel(context.Background())
	require.NoError(t, r.Register("a", types.AgentClaude, cancelA, ""))
	require.NoError(t, r.Register("b", types.AgentClaude, cancelB, ""))
	r.MarkDone("a")

	assert.Equal(t, 1, r.CleanupDone())
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
}

func TestOnEmptyCallbackFiresWhenTableEmpties(t *testing.T) {
	r := New()
	var mu sync.Mutex
	fired := 0
	token := r.AddOnEmptyCallback(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	defer r.RemoveOnEmptyCallback(token)

	_, cancelA := context.WithCancel(context.Background())
	_, cancelB := context.WithCancel(context.Background())
	require.NoError(t, r.Register("a", types.AgentClaude, cancelA, ""))
	require.NoError(t, r.Register("b", types.AgentClaude, cancelB, ""))

	r.Unregister("a")
	mu.Lock()
	assert.Equal(t, 0, fired, "callback must not fire while the table is still non-empty")
	mu.Unlock()

	r.Unregister("b")
	mu.Lock()
	assert.Equal(t, 1, fired)
	mu.Unlock()
}

func TestRemoveOnEmptyCallbackStopsFutureFires(t *testing.T) {
	r := New()
	fired := 0
	token := r.AddOnEmptyCallback(func() { fired++ })
	r.RemoveOnEmptyCallback(token)

	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register("solo", types.AgentClaude, cancel, ""))
	r.Unregister("solo")

	assert.Equal(t, 0, fired)
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewRequestID()
			_, cancel := context.WithCancel(context.Background())
			if err := r.Register(id, types.AgentCodex, cancel, ""); err != nil {
				return
			}
			r.MarkDone(id)
			r.Unregister(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.TotalCount())
}
