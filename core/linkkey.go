package core

import "fmt"

// LinkKey identifies an undirected communication link between two stations.
// Keys are canonicalized so that (a, b) and (b, a) always resolve to the
// same record; every entry point that accepts a node pair goes through
// NewLinkKey before touching a map.
type LinkKey struct {
	A, B int
}

// NewLinkKey canonicalizes an unordered node pair into a LinkKey with A <= B.
func NewLinkKey(a, b int) LinkKey {
	if a > b {
		a, b = b, a
	}
	return LinkKey{A: a, B: b}
}

// Has reports whether node is one of the link's endpoints.
func (k LinkKey) Has(node int) bool {
	return k.A == node || k.B == node
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%d-%d", k.A, k.B)
}
