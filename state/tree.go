// File: state/tree.go
// Package state
// License: Apache-2.0
//
// Tree stands in for the two msgid-indexed RB-trees the original
// implementation keeps per connection (statewr for transactions this
// side created, staterd for transactions the peer created). A plain map
// is the idiomatic Go replacement for an RB-tree keyed by an integer:
// no pack example vendors a red-black tree, and nothing here needs
// ordered traversal, only O(1) lookup/insert/delete by msgid.

package state

// Tree is a msgid-indexed set of states, one instance per direction
// (write-side and read-side) kept by a connection.
type Tree struct {
	byID map[uint64]*State
}

// NewTree returns an empty Tree.
func NewTree() *Tree {
	return &Tree{byID: make(map[uint64]*State)}
}

// Insert adds s to the tree under s.MsgID and marks it RBINSERTED,
// taking the tree's reference via the caller (matching NewDynamic's
// refcount of 2, one of which is this tree slot).
func (t *Tree) Insert(s *State) {
	t.byID[s.MsgID] = s
	s.Flags |= FlagRBInserted
}

// Lookup returns the state for msgid, or nil if none is registered.
func (t *Tree) Lookup(msgid uint64) *State {
	return t.byID[msgid]
}

// Delete removes s from the tree and drops the reference the tree held
// on it. A no-op if s was not inserted.
func (t *Tree) Delete(s *State) {
	if !s.Flags.Has(FlagRBInserted) {
		return
	}
	delete(t.byID, s.MsgID)
	s.Flags &^= FlagRBInserted
	s.Drop()
}

// Len reports how many states are currently tracked.
func (t *Tree) Len() int { return len(t.byID) }

// Each calls fn for every tracked state. The callback must not mutate
// the tree; callers needing mutation-safe iteration should snapshot via
// a slice first.
func (t *Tree) Each(fn func(*State)) {
	for _, s := range t.byID {
		fn(s)
	}
}
