// File: state/state_test.go
// License: Apache-2.0

package state_test

import (
	"testing"

	"github.com/clusterkit/dmsgcore/state"
)

func TestRootStartsWithOneRef(t *testing.T) {
	root := state.NewRoot()
	if got := root.Refs(); got != 1 {
		t.Fatalf("Refs() = %d, want 1", got)
	}
	if !root.Flags.Has(state.FlagRoot) {
		t.Fatalf("expected FlagRoot set")
	}
}

func TestSubqInsertHoldsParentOnce(t *testing.T) {
	root := state.NewRoot()
	child := state.NewDynamic(root, 1, false)

	if got := root.Refs(); got != 2 {
		t.Fatalf("parent Refs() = %d, want 2 (self + subq)", got)
	}
	if got := child.Refs(); got != 2 {
		t.Fatalf("child Refs() = %d, want 2 (subq + tree)", got)
	}

	children := root.Children()
	if len(children) != 1 || children[0] != child {
		t.Fatalf("Children() = %v, want [child]", children)
	}
}

func TestSubqDeleteDropsParentRefWhenEmpty(t *testing.T) {
	root := state.NewRoot()
	child := state.NewDynamic(root, 1, false)
	child.Drop() // drop the tree reference; this child is never inserted into a Tree

	child.SubqDelete()

	if got := root.Refs(); got != 1 {
		t.Fatalf("Refs() after last child removed = %d, want 1", got)
	}
	if len(root.Children()) != 0 {
		t.Fatalf("expected empty subq after SubqDelete")
	}
}

func TestForEachChildSurvivesRemovalDuringCallback(t *testing.T) {
	root := state.NewRoot()
	a := state.NewDynamic(root, 1, false)
	b := state.NewDynamic(root, 2, false)
	c := state.NewDynamic(root, 3, false)

	var visited []uint64
	root.ForEachChild(func(child *state.State) {
		visited = append(visited, child.MsgID)
		if child == a {
			// Removing b out from under the scan cursor while visiting a
			// must not corrupt the remaining walk.
			b.Drop()
			b.SubqDelete()
		}
	})

	want := map[uint64]bool{1: true, 3: true}
	if len(visited) < 2 {
		t.Fatalf("visited = %v, want at least a and c", visited)
	}
	seen := map[uint64]bool{}
	for _, id := range visited {
		seen[id] = true
	}
	for id := range want {
		if !seen[id] {
			t.Fatalf("visited = %v, missing msgid %d", visited, id)
		}
	}
	if seen[2] {
		t.Fatalf("visited = %v, should not have visited removed child 2", visited)
	}

	a.Drop()
	a.SubqDelete()
	c.Drop()
	c.SubqDelete()
	if got := root.Refs(); got != 1 {
		t.Fatalf("Refs() after all children removed = %d, want 1", got)
	}
}

func TestSetDyingRecursivePropagatesAndIsIdempotent(t *testing.T) {
	root := state.NewRoot()
	parent := state.NewDynamic(root, 1, false)
	child := state.NewDynamic(parent, 2, false)

	parent.SetDyingRecursive()
	if !parent.IsDying() || !child.IsDying() {
		t.Fatalf("expected DYING to propagate to children")
	}

	// Idempotent: calling again must not panic or double-propagate oddly.
	parent.SetDyingRecursive()
	if !child.IsDying() {
		t.Fatalf("expected DYING to remain set")
	}
}

func TestTreeInsertLookupDelete(t *testing.T) {
	root := state.NewRoot()
	tree := state.NewTree()
	child := state.NewDynamic(root, 42, false)
	tree.Insert(child)

	if got := tree.Lookup(42); got != child {
		t.Fatalf("Lookup(42) = %v, want child", got)
	}
	if tree.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tree.Len())
	}

	tree.Delete(child)
	if tree.Lookup(42) != nil {
		t.Fatalf("expected Lookup(42) to return nil after Delete")
	}
	if tree.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Delete", tree.Len())
	}
}

func TestFreeOfAttachedStatePanics(t *testing.T) {
	root := state.NewRoot()
	child := state.NewDynamic(root, 1, false)
	tree := state.NewTree()
	tree.Insert(child)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic freeing a state still in subq/tree")
		}
	}()
	child.Drop() // refs now 1 (tree ref from NewDynamic's count of 2, minus this)
	child.Drop() // refs now 0: free() should panic, still SUBINSERTED+RBINSERTED
}
