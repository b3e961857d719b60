package audit

import (
	"fmt"

	"github.com/revlog/revlog/internal/state"
)

// Element is one member of a collection snapshot.
//
// Object is the live entity reference for relation collections (nil for
// plain value collections); Value is the serialized element state used for
// content comparison and audit payloads.
type Element struct {
	Object any
	Value  state.Value
}

// ElementChange is one raw collection delta: an element added, removed, or
// modified between the old and new snapshots.
type ElementChange struct {
	Element Element
	// Index is the element's position in the new snapshot (old snapshot
	// for removals). Ordered-collection semantics depend on it.
	Index int
	// Type classifies the delta.
	Type RevisionType
	// Data is the serialized change payload, tagged with the revision type
	// under the configured revision field name.
	Data state.Object
}

// identityFunc resolves the identity key of an element. Relation
// collections resolve through the target entity's IDMapper; value
// collections fall back to the content hash of the element state.
type identityFunc func(el Element) (string, error)

// valueIdentity keys an element by the canonical hash of its state.
func valueIdentity(el Element) (string, error) {
	if el.Value == nil {
		return "", fmt.Errorf("collection element carries no state value")
	}
	data, err := state.MarshalCanonical(el.Value)
	if err != nil {
		return "", fmt.Errorf("element identity: %w", err)
	}
	return string(data), nil
}

// mapCollectionChanges computes the ordered per-element deltas between the
// old and new snapshots of one collection.
//
// Elements present only in new are additions, elements present only in old
// are removals, and same-identity elements whose state differs are
// modifications. Additions and modifications are emitted in new-snapshot
// order followed by removals in old-snapshot order, so the result is
// deterministic for identical inputs.
func mapCollectionChanges(opts Options, identity identityFunc, oldSnap, newSnap []Element) ([]ElementChange, error) {
	oldByID := make(map[string]int, len(oldSnap))
	for i, el := range oldSnap {
		id, err := identity(el)
		if err != nil {
			return nil, err
		}
		oldByID[id] = i
	}

	newIDs := make(map[string]bool, len(newSnap))
	var changes []ElementChange

	for i, el := range newSnap {
		id, err := identity(el)
		if err != nil {
			return nil, err
		}
		newIDs[id] = true

		oldIdx, existed := oldByID[id]
		if !existed {
			changes = append(changes, newElementChange(opts, el, i, RevisionAdd))
			continue
		}
		if !state.Equal(oldSnap[oldIdx].Value, el.Value) {
			changes = append(changes, newElementChange(opts, el, i, RevisionMod))
		}
	}

	for i, el := range oldSnap {
		id, err := identity(el)
		if err != nil {
			return nil, err
		}
		if !newIDs[id] {
			changes = append(changes, newElementChange(opts, el, i, RevisionDel))
		}
	}

	return changes, nil
}

// newElementChange builds the serialized payload for one delta.
func newElementChange(opts Options, el Element, index int, revType RevisionType) ElementChange {
	data := state.Object{
		opts.RevisionFieldName: state.String(revType.String()),
		"index":                state.Int(int64(index)),
	}
	if el.Value != nil {
		data["element"] = el.Value
	}
	return ElementChange{
		Element: el,
		Index:   index,
		Type:    revType,
		Data:    data,
	}
}
