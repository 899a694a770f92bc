package tracker

// nodeID indexes the node arena. none marks an absent child.
type nodeID int32

const none nodeID = -1

type node struct {
	rec   Record
	left  nodeID
	right nodeID
}

// arena stores nodes by index and recycles released slots through a
// free-index stack.
type arena struct {
	nodes []node
	free  []nodeID
}

func (a *arena) alloc(rec Record) nodeID {
	n := node{rec: rec, left: none, right: none}
	if k := len(a.free); k > 0 {
		id := a.free[k-1]
		a.free = a.free[:k-1]
		a.nodes[id] = n
		return id
	}
	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) release(id nodeID) {
	a.nodes[id] = node{left: none, right: none}
	a.free = append(a.free, id)
}

func (a *arena) at(id nodeID) *node {
	return &a.nodes[id]
}

func (a *arena) reset() {
	a.nodes = a.nodes[:0]
	a.free = a.free[:0]
}

// slots returns the number of arena slots ever handed out and how many of
// them are currently on the free stack.
func (a *arena) slots() (total, free int) {
	return len(a.nodes), len(a.free)
}
