package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })
	m.Register("nil", nil)

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestGoReportsFailures(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Go(ctx, "quiet", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.Go(ctx, "broken", func(context.Context) error { return errors.New("listen failed") })

	select {
	case err := <-m.Errors():
		assert.Contains(t, err.Error(), "broken")
	case <-time.After(time.Second):
		t.Fatal("expected failure report")
	}

	cancel()
	m.Wait()
	select {
	case err := <-m.Errors():
		t.Fatalf("cancellation reported as failure: %v", err)
	default:
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	m := New(time.Second, nil)
	calls := 0
	m.Register("db", func(context.Context) error { calls++; return errors.New("close failed") })

	first := m.Shutdown(context.Background())
	second := m.Shutdown(context.Background())
	require.Error(t, first)
	assert.Contains(t, first.Error(), "db: close failed")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestShutdownHooksShareTimeout(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	var sawDeadline bool
	m.Register("slow", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, sawDeadline)
}
