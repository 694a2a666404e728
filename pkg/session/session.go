// Package session holds the Session data model: the run-once value
// created after key derivation and fork, and destroyed on tracee exit.
// Passed explicitly through the call chain rather than kept in a
// package-level global.
package session

import (
	"github.com/keyed/keyed/pkg/errs"
	"github.com/keyed/keyed/pkg/keystream"
)

// DefaultTableCapacity is the suggested bound on concurrently
// monitored descriptors.
const DefaultTableCapacity = 16

// Table is the Monitored Descriptor Table: an unordered, capacity-bounded
// set of tracee-space file descriptors opened against one of the two
// sentinel device paths and not yet closed. Duplicates never appear
// because it's a set; mutated only by the interceptor at syscall-exit
// stops.
type Table struct {
	capacity int
	fds      map[int]struct{}
}

// NewTable builds an empty table with the given capacity.
func NewTable(capacity int) *Table {
	return &Table{
		capacity: capacity,
		fds:      make(map[int]struct{}, capacity),
	}
}

// Add places fd under monitoring. Fails closed with CapacityError if
// the table is already at capacity and fd is not already present.
func (t *Table) Add(fd int) error {
	if _, ok := t.fds[fd]; ok {
		return nil
	}
	if len(t.fds) >= t.capacity {
		return errs.New(errs.CapacityError, "monitored descriptor table full at capacity %d", t.capacity)
	}
	t.fds[fd] = struct{}{}
	return nil
}

// Remove drops fd from monitoring. A no-op if fd isn't present, which
// covers both "close of an unmonitored fd" and "second close of the
// same fd".
func (t *Table) Remove(fd int) {
	delete(t.fds, fd)
}

// Contains reports whether fd is currently monitored.
func (t *Table) Contains(fd int) bool {
	_, ok := t.fds[fd]
	return ok
}

// Len reports the current number of monitored descriptors.
func (t *Table) Len() int {
	return len(t.fds)
}

// Session is the run-once value created after key derivation and
// fork: derived key, verbose flag, optional fake pid, tracee id, the
// Monitored Descriptor Table, and a growable scratch buffer reused
// across emulated calls.
type Session struct {
	key       [keystream.KeySize]byte
	Verbose   bool
	FakePID   *uint64
	TraceePID int
	Table     *Table
	scratch   []byte
}

// New creates a Session. key is taken by value and copied internally;
// the caller's copy should still be zeroed by the caller once it's no
// longer needed, since Go can't guarantee a single canonical copy.
func New(key [keystream.KeySize]byte, tableCapacity int, verbose bool, fakePID *uint64, traceePID int) *Session {
	return &Session{
		key:       key,
		Verbose:   verbose,
		FakePID:   fakePID,
		TraceePID: traceePID,
		Table:     NewTable(tableCapacity),
	}
}

// Key returns the derived key.
func (s *Session) Key() [keystream.KeySize]byte {
	return s.key
}

// Scratch returns a reusable buffer of at least n bytes, growing the
// backing array monotonically (never shrinking).
func (s *Session) Scratch(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.New(errs.ResourceError, "negative scratch request: %d", n)
	}
	if cap(s.scratch) < n {
		grown, err := growScratch(n)
		if err != nil {
			return nil, err
		}
		s.scratch = grown
	}
	return s.scratch[:n], nil
}

func growScratch(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ResourceError, "failed to grow scratch buffer to %d bytes: %v", n, r)
		}
	}()
	return make([]byte, n), nil
}

// Close zeroises the derived key. Called once, on tracee exit.
func (s *Session) Close() {
	keystream.Zero(&s.key)
}
