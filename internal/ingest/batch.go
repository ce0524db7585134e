package ingest

import (
	"context"
)

// Batch tracks the files of one submission. Each file is an independent
// unit; the batch is done when every unit reached a terminal state.
type Batch struct {
	Receipts []Receipt

	outcomes []Outcome
	pending  int
	done     chan struct{}
}

func newBatch(n int) *Batch {
	b := &Batch{
		Receipts: make([]Receipt, n),
		outcomes: make([]Outcome, n),
		pending:  n,
		done:     make(chan struct{}),
	}
	if n == 0 {
		close(b.done)
	}
	return b
}

// Done is closed once every unit of the batch finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch is done and returns the per-file outcomes in
// submission order.
func (b *Batch) Wait(ctx context.Context) ([]Outcome, error) {
	select {
	case <-b.done:
		out := make([]Outcome, len(b.outcomes))
		copy(out, b.outcomes)
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish is called on the controller loop only.
func (b *Batch) finish(i int, o Outcome) {
	b.outcomes[i] = o
	b.pending--
	if b.pending == 0 {
		close(b.done)
	}
}

// unit is the pipeline state of one file.
type unit struct {
	batch *Batch
	index int
	in    Incoming

	state    State
	rowID    string
	finished bool
}

func (u *unit) advance(to State) error {
	if !CanTransition(u.state, to) {
		return &ErrTransition{From: u.state, To: to}
	}
	u.state = to
	return nil
}

func (u *unit) finish(o Outcome) {
	if u.finished {
		return
	}
	u.finished = true
	o.Name = u.in.Name
	o.State = u.state
	u.batch.finish(u.index, o)
}
