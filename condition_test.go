package asynclife

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateConditionAlreadyTrue(t *testing.T) {
	svc := NewService(ServiceHooks{Name: "s"})
	cond := NewStateCondition(svc, func(s State) bool { return s == StateStopped })
	assert.True(t, cond.EvaluateNow())
	cond.Await()
}

func TestStateConditionBecomesTrueLater(t *testing.T) {
	svc := NewService(ServiceHooks{
		Name:  "s",
		Start: func(ctx context.Context) error { return nil },
	})
	cond := NewStateCondition(svc, func(s State) bool { return s == StateRunning })
	assert.False(t, cond.EvaluateNow())

	require.NoError(t, svc.Start())
	select {
	case <-condAwaitCh(cond):
	case <-time.After(time.Second):
		t.Fatal("condition never became true")
	}
	assert.True(t, cond.EvaluateNow())
}

func TestStateConditionAwaitTimeout(t *testing.T) {
	svc := NewService(ServiceHooks{Name: "s"})
	cond := NewStateCondition(svc, func(s State) bool { return s == StateRunning })
	assert.False(t, cond.AwaitTimeout(10*time.Millisecond))
}

func condAwaitCh(c *StateCondition) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		c.Await()
		close(ch)
	}()
	return ch
}
