package live

import (
	"slices"
	"sync"
)

// SourceKind names the transport a candidate snapshot came from.
type SourceKind string

const (
	SourcePush   SourceKind = "push"
	SourceServer SourceKind = "server"
	SourceLocal  SourceKind = "local"
)

// Candidate is one source's interpretation of what is live.
type Candidate struct {
	Source        SourceKind `json:"source"`
	Snapshot      Snapshot   `json:"snapshot"`
	UpdatedAt     int64      `json:"updatedAt"`
	HasRenderable bool       `json:"hasRenderable"`
}

// Usable reports whether the candidate may replace what is on screen.
func (c Candidate) Usable() bool {
	return c.Snapshot.Blackout || c.HasRenderable
}

// Interpret builds a candidate from a source reading. A zero updatedAt
// falls back to the snapshot's own updatedAt field.
func Interpret(source SourceKind, snap Snapshot, updatedAt int64) Candidate {
	if updatedAt == 0 {
		updatedAt = snap.UpdatedAt
	}
	return Candidate{
		Source:        source,
		Snapshot:      snap,
		UpdatedAt:     updatedAt,
		HasRenderable: snap.Renderable(),
	}
}

// Rank orders candidates newest first. Equal timestamps keep the caller's
// order, which is the source priority.
func Rank(candidates []Candidate) []Candidate {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// Select returns the newest usable candidate, or the newest candidate of
// all when none is usable. ok is false only for an empty input.
func Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	ranked := Rank(candidates)
	for _, c := range ranked {
		if c.Usable() {
			return c, true
		}
	}
	return ranked[0], true
}

// Display is what a surface should show after a reconciliation tick.
type Display struct {
	Candidate Candidate `json:"candidate"`
	// Held is true when the fresh selection was unusable and the previous
	// usable display was kept.
	Held bool `json:"held"`
}

// Reconciler applies Select with sticky display state: once something
// usable has been shown it stays up until a newer usable candidate
// replaces it.
type Reconciler struct {
	mu     sync.Mutex
	sticky *Candidate
}

// NewReconciler creates a reconciler with no sticky state.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile runs one tick. ok is false when there is nothing to show at all.
func (r *Reconciler) Reconcile(candidates ...Candidate) (Display, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	selected, ok := Select(candidates)
	if ok && selected.Usable() {
		held := selected
		r.sticky = &held
		return Display{Candidate: selected}, true
	}
	if r.sticky != nil {
		return Display{Candidate: *r.sticky, Held: true}, true
	}
	if !ok {
		return Display{}, false
	}
	return Display{Candidate: selected}, true
}

// Reset drops the sticky state, e.g. when a surface switches sessions.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sticky = nil
}
