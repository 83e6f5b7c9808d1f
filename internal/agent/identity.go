package agent

// NodeIdentity holds the backend-assigned node id. It is written exactly
// once, after successful registration and before any loop starts, then
// read-only, so lock-free reads are safe.
type NodeIdentity struct {
	id string
}

func (n *NodeIdentity) set(id string) {
	if n.id != "" {
		return
	}
	n.id = id
}

// ID returns the node id, or "" before registration completes.
func (n *NodeIdentity) ID() string {
	return n.id
}
