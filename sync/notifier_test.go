package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifierSeq(t *testing.T) {
	n := NewNotifier()
	assert.Equal(t, int64(0), n.Seq())

	n.NotifyChange()
	n.NotifyChange()
	assert.Equal(t, int64(2), n.Seq())
}

func TestAwaitChangeStale(t *testing.T) {
	n := NewNotifier()
	n.NotifyChange()

	assert.Equal(t, int64(1), n.AwaitChange(context.Background(), 0))
}

func TestAwaitChangeWakes(t *testing.T) {
	n := NewNotifier()
	got := make(chan int64)

	go func() {
		got <- n.AwaitChange(context.Background(), 0)
	}()

	n.NotifyChange()

	select {
	case seq := <-got:
		assert.Equal(t, int64(1), seq)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestAwaitChangeCanceled(t *testing.T) {
	n := NewNotifier()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, int64(0), n.AwaitChange(ctx, 0))
}

func TestAwaitChangeCollapses(t *testing.T) {
	n := NewNotifier()
	seq := n.Seq()

	n.NotifyChange()
	n.NotifyChange()
	n.NotifyChange()

	seq = n.AwaitChange(context.Background(), seq)
	assert.Equal(t, int64(3), seq)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, seq, n.AwaitChange(ctx, seq), "one wake for three changes")
}
