// Package sync has the broadcast primitive used to tell status watchers
// that something changed.
package sync

import "context"

type generation struct {
	seq     int64
	changed chan struct{}
}

// Notifier counts changes. Status watchers block in AwaitChange until the
// count moves; changes that land between two waits collapse into one wake.
type Notifier struct {
	gen chan generation
}

func NewNotifier() *Notifier {
	gen := make(chan generation, 1)
	gen <- generation{changed: make(chan struct{})}
	return &Notifier{gen: gen}
}

func (n *Notifier) current() generation {
	g := <-n.gen
	n.gen <- g
	return g
}

// Seq returns the current sequence number.
func (n *Notifier) Seq() int64 {
	return n.current().seq
}

func (n *Notifier) NotifyChange() {
	g := <-n.gen
	close(g.changed)
	n.gen <- generation{seq: g.seq + 1, changed: make(chan struct{})}
}

// AwaitChange returns the current count once it differs from seq, or seq
// when ctx is done.
func (n *Notifier) AwaitChange(ctx context.Context, seq int64) int64 {
	g := n.current()
	if g.seq != seq {
		return g.seq
	}

	select {
	case <-ctx.Done():
		return seq
	case <-g.changed:
		return n.Seq()
	}
}
