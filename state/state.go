// File: state/state.go
// Package state implements the transaction state tree: the node type,
// its lifecycle, and the refcount/subq discipline described by the
// transport's transaction engine. License: Apache-2.0
//
// A State is mutated only while its owning connection's mutex is held;
// this package holds no lock of its own, mirroring the teacher's
// internal/session.sessionImpl (a plain struct whose concurrency safety
// comes entirely from the caller's locking discipline, not an internal
// mutex) generalized from one flat session to a parent/child tree.

package state

import "github.com/clusterkit/dmsgcore/wire"

// Flag bits, one per spec.md §3 "flags".
type Flag uint32

const (
	FlagRoot Flag = 1 << iota
	FlagDynamic
	FlagOpposite
	FlagSubinserted
	FlagRBInserted
	FlagDying
	FlagAborting
	FlagNew
)

// Has reports whether every bit in want is set in f.
func (f Flag) Has(want Flag) bool { return f&want == want }

// Callback is invoked once per delivered message on this state.
type Callback func(msg *wire.Msg)

// State is one node of the transaction tree: either the connection's
// root sentinel (state0) or a dynamically allocated transaction.
type State struct {
	MsgID uint64

	// Parent is the owning state; state0 is its own parent. Non-owning:
	// the tree/subq membership is what keeps a state alive, not this
	// pointer (see Invariant 2, spec.md §3).
	Parent *State

	// subq is the ordered list of children, implemented as an intrusive
	// doubly linked list so Scan-based iteration survives concurrent
	// removal exactly as the TAILQ + scan-cursor original does.
	subqHead, subqTail *State
	siblingNext, siblingPrev *State

	// Scan is the cursor used by the failure cascade's "recurse with
	// mutation" iteration (spec.md §4.3, §9): set to the child currently
	// being visited, and checked after any reentrant callback to detect
	// whether that child (or others) disappeared mid-iteration.
	Scan *State

	TxCmd wire.Cmd // flags accumulated on sent messages
	RxCmd wire.Cmd // flags accumulated on received messages
	ICmd  wire.Cmd // inner/base command, latched on first CREATE

	Flags Flag
	refs  int

	// Relay is the optional cross-circuit mirror state; held as a strong
	// reference in both directions (spec.md §4.4).
	Relay *State

	// RelayConn is Relay's owning connection, needed to reforward a
	// message across the relay pair without this package importing
	// iocom. Matches wire.StateRef's import-cycle-avoidance trick.
	RelayConn RelayTarget

	Func Callback
	Any  any
}

// RelayTarget is the minimal capability a relay peer's owning connection
// must expose: enough to hand it a reforwarded message.
type RelayTarget interface {
	SendMessage(msg *wire.Msg)
}

// NewRoot constructs a connection's state0 sentinel: its own parent, one
// permanent reference, ROOT set, nothing ever inserted into a subq.
func NewRoot() *State {
	s := &State{Flags: FlagRoot, refs: 1}
	s.Parent = s
	return s
}

// NewDynamic allocates a child of parent, inserts it onto parent's subq,
// and gives it the two references a freshly created dynamic state
// always starts with: one for subq membership and one for tree
// membership (spec.md §3 Invariant 7 and §4: "allocate ... CREATE ...
// Then [insert] in statewr"). A message that references the state takes
// its own reference with Hold. The caller is responsible for also
// inserting the returned state into the appropriate msgid-indexed Tree.
func NewDynamic(parent *State, msgid uint64, opposite bool) *State {
	s := &State{
		MsgID:  msgid,
		Parent: parent,
		Flags:  FlagDynamic | (parent.Flags & FlagDying),
	}
	if opposite {
		s.Flags |= FlagOpposite
	}
	parent.subqInsert(s)
	s.Flags |= FlagSubinserted
	s.refs = 2 // subq + tree; the caller must also call Tree.Insert
	return s
}

// Hold adds one reference.
func (s *State) Hold() { s.refs++ }

// Release drops one reference, freeing s when it reaches zero. Matches
// wire.StateRef so a *wire.Msg can hold a State without an import cycle.
func (s *State) Release() { s.Drop() }

// Drop drops one reference, freeing s when it reaches zero.
func (s *State) Drop() {
	if s.refs <= 0 {
		panic("state: refcount underflow")
	}
	s.refs--
	if s.refs == 0 {
		s.free()
	}
}

// Refs returns the current reference count (for tests/invariant checks).
func (s *State) Refs() int { return s.refs }

func (s *State) free() {
	if s.Flags.Has(FlagRoot) || s.Flags.Has(FlagSubinserted) || s.Flags.Has(FlagRBInserted) {
		panic("state: free of state still attached")
	}
	if s.subqHead != nil {
		panic("state: free of state with non-empty subq")
	}
	s.Any = nil
}

// subqInsert appends child to the tail of the subq, taking the "first
// child adds a ref to the parent" hold described in spec.md §3
// Invariant 7.
func (p *State) subqInsert(child *State) {
	if p.subqHead == nil {
		p.Hold() // subq went empty->non-empty
		p.subqHead = child
		p.subqTail = child
	} else {
		child.siblingPrev = p.subqTail
		p.subqTail.siblingNext = child
		p.subqTail = child
	}
}

// SubqDelete removes s from its parent's subq. May recursively drop the
// parent if the subq becomes empty (balancing the ref taken in
// subqInsert). Grounded on dmsg_subq_delete in the original implementation.
func (s *State) SubqDelete() {
	if !s.Flags.Has(FlagSubinserted) {
		return
	}
	p := s.Parent
	if p.Scan == s {
		p.Scan = nil
	}
	if s.siblingPrev != nil {
		s.siblingPrev.siblingNext = s.siblingNext
	} else {
		p.subqHead = s.siblingNext
	}
	if s.siblingNext != nil {
		s.siblingNext.siblingPrev = s.siblingPrev
	} else {
		p.subqTail = s.siblingPrev
	}
	s.siblingNext, s.siblingPrev = nil, nil
	s.Flags &^= FlagSubinserted
	s.Parent = nil
	empty := p.subqHead == nil
	if empty {
		p.Drop() // subq non-empty->empty
	}
	s.Drop() // the ref this state held for subq membership
}

// Children returns the current subq in order, as a snapshot slice. Safe
// to use outside the cascade's mutation-tolerant iteration (ForEachChild)
// when the caller does not mutate the tree while walking.
func (s *State) Children() []*State {
	var out []*State
	for c := s.subqHead; c != nil; c = c.siblingNext {
		out = append(out, c)
	}
	return out
}

// ForEachChild implements the "recurse with mutation" iteration pattern
// from spec.md §9: s.Scan is set to each child before fn runs, and if
// s.Scan no longer equals that child after fn returns (SubqDelete of the
// scanned child clears it), ForEachChild restarts from the head of the
// subq.
func (s *State) ForEachChild(fn func(child *State)) {
restart:
	for c := s.subqHead; c != nil; c = c.siblingNext {
		s.Scan = c
		fn(c)
		if s.Scan != c {
			goto restart
		}
	}
}

// IsDying reports whether new sends are forbidden on this state.
func (s *State) IsDying() bool { return s.Flags.Has(FlagDying) }

// IsAborting reports whether failure synthesis is already in progress.
func (s *State) IsAborting() bool { return s.Flags.Has(FlagAborting) }

// SetDyingRecursive recursively sets DYING on s and its subtree,
// idempotent at each node (spec.md §4.3 dmsg_state_dying).
func (s *State) SetDyingRecursive() {
	if s.Flags.Has(FlagDying) {
		return
	}
	s.Flags |= FlagDying
	for c := s.subqHead; c != nil; c = c.siblingNext {
		c.SetDyingRecursive()
	}
}
