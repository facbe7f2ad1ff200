// Package decide evaluates a declarative decision tree against the tag
// mapping derived from a turn. The tree is compiled once at load time and
// shared read-only across all concurrent turns.
package decide

import (
	"fmt"

	"github.com/argus-ai/argus/internal/assistant"
)

// Tags is the flat tag mapping produced by an intent's tagger. Values are
// booleans or small closed string sets; absent tags read as false/unset.
type Tags map[string]any

// Bool returns the boolean tag value. Absent or non-boolean reads false.
func (t Tags) Bool(name string) bool {
	if t == nil {
		return false
	}
	v, ok := t[name].(bool)
	return ok && v
}

// String returns the string tag value, or "" when absent.
func (t Tags) String(name string) string {
	if t == nil {
		return ""
	}
	s, _ := t[name].(string)
	return s
}

// StateFn shapes the turn's session flags after template resolution. Pure:
// it receives the current flags and returns the updates to apply.
type StateFn func(flags map[string]bool) map[string]bool

// Decision is a terminal outcome: the template to render plus the state
// contribution. State is invoked exactly once per turn, after template
// resolution.
type Decision struct {
	Template string
	State    StateFn
}

// Guard is a predicate over the tag mapping.
type Guard func(Tags) bool

// Branch pairs a guard with its subtree. Branches are evaluated in
// declared order; the first satisfied guard wins.
type Branch struct {
	When Guard
	Then *Node
}

// Node is either an internal branch node or a leaf carrying a Decision.
type Node struct {
	Name     string
	Branches []Branch
	Default  *Node
	Decision *Decision
}

// Leaf builds a leaf node.
func Leaf(name, template string, state StateFn) *Node {
	return &Node{Name: name, Decision: &Decision{Template: template, State: state}}
}

// Tree is a compiled, immutable decision tree.
type Tree struct {
	root *Node
}

const maxDepth = 64

// Compile validates the model once. A node must be a leaf or carry at
// least one branch or a default; guards must be non-nil.
func Compile(root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("decide: root node required")
	}
	if err := validate(root, 0); err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

// MustCompile is Compile for static models wired at process start.
func MustCompile(root *Node) *Tree {
	t, err := Compile(root)
	if err != nil {
		panic(err)
	}
	return t
}

func validate(n *Node, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("decide: tree exceeds max depth %d at %q", maxDepth, n.Name)
	}
	if n.Decision != nil {
		if len(n.Branches) > 0 || n.Default != nil {
			return fmt.Errorf("decide: leaf %q must not carry branches", n.Name)
		}
		if n.Decision.Template == "" {
			return fmt.Errorf("decide: leaf %q has no template", n.Name)
		}
		return nil
	}
	if len(n.Branches) == 0 && n.Default == nil {
		return fmt.Errorf("decide: node %q has no branches, default, or decision", n.Name)
	}
	for i, b := range n.Branches {
		if b.When == nil {
			return fmt.Errorf("decide: node %q branch %d has no guard", n.Name, i)
		}
		if b.Then == nil {
			return fmt.Errorf("decide: node %q branch %d has no target", n.Name, i)
		}
		if err := validate(b.Then, depth+1); err != nil {
			return err
		}
	}
	if n.Default != nil {
		return validate(n.Default, depth+1)
	}
	return nil
}

// Predict walks the tree depth-first against the tag mapping. At each
// branch node the first declared guard that holds wins; with no match the
// node's default is taken. Reaching a node with no matching guard and no
// default is a DecisionError, never a silent fallback. Deterministic for a
// given tag mapping.
func (t *Tree) Predict(tags Tags) (Decision, error) {
	node := t.root
	path := make([]string, 0, 8)

	for {
		path = append(path, node.Name)
		if node.Decision != nil {
			return *node.Decision, nil
		}

		var next *Node
		for _, b := range node.Branches {
			if b.When(tags) {
				next = b.Then
				break
			}
		}
		if next == nil {
			next = node.Default
		}
		if next == nil {
			return Decision{}, &assistant.DecisionError{
				Path:   path,
				Reason: "no guard matched and no default declared",
			}
		}
		node = next
	}
}

// TagIsTrue guards on a boolean tag.
func TagIsTrue(name string) Guard {
	return func(tags Tags) bool { return tags.Bool(name) }
}

// TagEquals guards on a string tag value.
func TagEquals(name, value string) Guard {
	return func(tags Tags) bool { return tags.String(name) == value }
}
