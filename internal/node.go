package internal

import "sync/atomic"

var nodeIDSeq atomic.Uint64

func nextNodeID() uint64 {
	return nodeIDSeq.Add(1)
}

// Node is the capability every reactive node shares: a stable
// process-local identity used as a map key by the Tracker.
type Node interface {
	ID() uint64
}

// Dependent is a Node that can itself depend on other nodes: a
// DerivedCell, a ResourceCell, or an EffectRunner. OnDependencyChanged is
// invoked by the Tracker when one of this dependent's tracked
// dependencies changes.
type Dependent interface {
	Node
	OnDependencyChanged()

	// base returns the embedded nodeBase so the Tracker can mint a weak
	// back-edge pointing at it. Unexported: only types in this package
	// implement Dependent.
	base() *nodeBase
}

// nodeBase gives every concrete node type a stable identity. Dependent
// implementations additionally bind themselves via BindSelf so that a
// weak.Pointer[nodeBase] resolved by the Tracker can reach back out to
// the owning value's OnDependencyChanged.
type nodeBase struct {
	id   uint64
	self Dependent
}

func newNodeBase() nodeBase {
	return nodeBase{id: nextNodeID()}
}

func (n *nodeBase) ID() uint64 { return n.id }

func (n *nodeBase) base() *nodeBase { return n }

// BindSelf records the outer Dependent value backed by this nodeBase.
// Called once by each Dependent constructor.
func (n *nodeBase) BindSelf(d Dependent) { n.self = d }

// notify invokes the bound Dependent's OnDependencyChanged, if any.
func (n *nodeBase) notify() {
	if n.self != nil {
		n.self.OnDependencyChanged()
	}
}
