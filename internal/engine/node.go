// Package engine implements the recursive decomposition-and-composition core.
//
// A task is classified as SIMPLE or COMPLEX; complex tasks are decomposed
// into sub-questions, each resolved by the same procedure one level deeper,
// and the sub-answers are synthesized back into one answer. Every decision
// is recorded in an explicit recursion tree.
package engine

// Complexity is the classifier verdict stored on a node.
type Complexity string

const (
	// ComplexityUnset is the transient pre-classification value.
	ComplexityUnset Complexity = ""

	// ComplexitySimple marks a question answered directly.
	ComplexitySimple Complexity = "SIMPLE"

	// ComplexityComplex marks a question that was decomposed.
	ComplexityComplex Complexity = "COMPLEX"

	// ComplexityMaxDepth marks a question forced to a direct answer by the
	// depth bound; the classifier is never consulted for these.
	ComplexityMaxDepth Complexity = "MAX_DEPTH"
)

// Node is one entry in the recursion tree. The resolver is the only writer;
// once a node is returned to the caller it must be treated as immutable.
type Node struct {
	// Question is the exact text resolved at this node.
	Question string `json:"question"`

	// Depth is 0 at the root and increases by exactly 1 per level.
	Depth int `json:"depth"`

	// Complexity is the verdict that decided this node's fate.
	Complexity Complexity `json:"complexity,omitempty"`

	// SubQuestions is the ordered decomposition; empty unless COMPLEX.
	SubQuestions []string `json:"sub_questions,omitempty"`

	// Children holds one resolved node per sub-question, same order.
	Children []*Node `json:"children,omitempty"`

	// Answer is set exactly once, after all children are resolved.
	Answer string `json:"answer,omitempty"`
}

// NewNode creates a node for a question at the given depth. All other
// fields start empty.
func NewNode(question string, depth int) *Node {
	return &Node{Question: question, Depth: depth}
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits the subtree rooted at n depth-first, parents before children,
// siblings in decomposition order. Walking stops when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	n.walk(fn)
}

func (n *Node) walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.walk(fn) {
			return false
		}
	}
	return true
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *Node) CountNodes() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// MaxDepth returns the largest depth present in the subtree rooted at n.
func (n *Node) MaxDepth() int {
	deepest := 0
	n.Walk(func(node *Node) bool {
		if node.Depth > deepest {
			deepest = node.Depth
		}
		return true
	})
	return deepest
}
