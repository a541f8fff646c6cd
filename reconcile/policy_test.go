package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hubgraph/types"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDisabledByDefault(t *testing.T) {
	var p RetryPolicy
	assert.False(t, p.Enabled())
	assert.Nil(t, p.newRetrier())
}

func TestRetryPolicyDefaultBackoff(t *testing.T) {
	p := RetryPolicy{Attempts: 1}
	assert.True(t, p.Enabled())
	assert.NotNil(t, p.newRetrier())
}

func TestUnavailableClassifier(t *testing.T) {
	c := unavailableClassifier{}
	tests := []struct {
		name string
		err  error
		want retrier.Action
	}{
		{"nil", nil, retrier.Succeed},
		{"unavailable", types.ErrSourceUnavailable, retrier.Retry},
		{"wrapped unavailable", fmt.Errorf("fetch: %w", types.ErrSourceUnavailable), retrier.Retry},
		{"protocol", types.ErrSourceProtocol, retrier.Fail},
		{"shrank", ErrSourceShrank, retrier.Fail},
		{"other", errors.New("boom"), retrier.Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestRetrierStopsOnContextCancel(t *testing.T) {
	r := RetryPolicy{Attempts: 10, Backoff: time.Hour}.newRetrier()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.RunCtx(ctx, func(context.Context) error {
		calls++
		cancel()
		return types.ErrSourceUnavailable
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
