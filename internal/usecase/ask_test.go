package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/internal/domain"
)

type slowAnswerer struct {
	mu      sync.Mutex
	active  int32
	maxSeen int32
}

func (a *slowAnswerer) Answer(_ context.Context, query string) (domain.QueryResult, error) {
	n := atomic.AddInt32(&a.active, 1)
	defer atomic.AddInt32(&a.active, -1)
	a.mu.Lock()
	if n > a.maxSeen {
		a.maxSeen = n
	}
	a.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	if query == "bad" {
		return domain.QueryResult{}, errors.New("boom")
	}
	return domain.QueryResult{Response: "re: " + query}, nil
}

func TestAskMany_KeepsOrderAndBoundsConcurrency(t *testing.T) {
	a := &slowAnswerer{}
	u := NewAskUseCase(a, 2)

	results, err := u.AskMany(context.Background(), []string{"one", "bad", "three", "four", "five"})
	require.NoError(t, err)

	require.Len(t, results, 5)
	assert.Equal(t, "re: one", results[0].Result.Response)
	assert.Equal(t, "boom", results[1].Error)
	assert.Error(t, results[1].Err)
	assert.Equal(t, "re: five", results[4].Result.Response)
	assert.LessOrEqual(t, a.maxSeen, int32(2))
}

func TestAsk_Delegates(t *testing.T) {
	u := NewAskUseCase(&slowAnswerer{}, 0)

	res, err := u.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "re: hi", res.Response)
}
