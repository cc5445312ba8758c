// Package persona implements the versioned branching history tree (C4): a
// record of an agent's evolving payload — persona snapshots, in the
// reference domain — as a tree where every edge is a deliberate "branch"
// event and every node's identifier is stable across serialize/restore.
//
// It is pluggable and independent of internal/provenance: nothing here
// touches proofs, signatures, or the Merkle accumulator. Higher layers that
// want a signed audit trail of tree edits would wrap Tree with a
// provenance.Machine of their own.
package persona

import (
	"encoding/json"
	"fmt"

	"github.com/ocx/provenance/internal/provenance"
)

// Node is one snapshot in the tree. Version has the canonical form "L@V"
// where L is Level and V is a 1-based ordinal unique among siblings.
type Node struct {
	Version  string           `json:"version"`
	Level    int              `json:"level"`
	Data     provenance.Value `json:"data"`
	Children []*Node          `json:"children"`
}

// ChildSpec is one (data, version) pair a Producer hands back to
// BranchRandom for attachment.
type ChildSpec struct {
	Data    provenance.Value
	Version string
}

// Producer builds the payloads for up to n new children, given the version
// strings the tree has pre-allocated for them. It may return fewer than n
// entries; only those are attached.
type Producer func(n int, versions []string) []ChildSpec

// Tree is the versioned branching history tree. All operations are
// serialized by the caller owning one Tree per agent, the same single-owner
// model provenance.Machine uses; Tree itself performs no internal locking.
type Tree struct {
	root     *Node
	maxLevel int
	current  string
	byVer    map[string]*Node
	rnd      Rand
}

// New creates a root node at version "0@1", level 0, with the current
// pointer on the root.
func New(initialData provenance.Value, rnd Rand) *Tree {
	if rnd == nil {
		rnd = NewSystemRand()
	}
	root := &Node{Version: "0@1", Level: 0, Data: initialData, Children: []*Node{}}
	return &Tree{
		root:     root,
		maxLevel: 0,
		current:  root.Version,
		byVer:    map[string]*Node{root.Version: root},
		rnd:      rnd,
	}
}

// Current returns the node the current pointer references.
func (t *Tree) Current() *Node {
	return t.byVer[t.current]
}

// CurrentVersion returns the current pointer's version string.
func (t *Tree) CurrentVersion() string { return t.current }

// MaxLevel returns the greatest level among all nodes in the tree.
func (t *Tree) MaxLevel() int { return t.maxLevel }

// Node looks up a node by its version string.
func (t *Tree) Node(version string) (*Node, bool) {
	n, ok := t.byVer[version]
	return n, ok
}

// UpdateCurrent replaces the current node's payload in place rather than
// copy-on-write, which weakens version stability for that one node's Data.
// Deliberate, not an oversight — see DESIGN.md.
func (t *Tree) UpdateCurrent(data provenance.Value) {
	t.byVer[t.current].Data = data
}

// nodesAtMaxLevel returns every node whose Level equals t.maxLevel, in
// depth-first order with children visited in attachment order. The walk
// follows the tree itself, not a map, so the order is the same on every
// call for the same tree, and BranchRandom's parent draw indexes into it
// directly.
func (t *Tree) nodesAtMaxLevel() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Level == t.maxLevel {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// BranchRandom grows the tree by one level under a randomly chosen parent:
//
//  1. selects a uniformly random parent among nodes at max level;
//  2. chooses n between 1 and 4 inclusive, uniformly at random;
//  3. constructs the n child version strings "(maxLevel+1)@1" .. "@n";
//  4. pre-selects, uniformly at random, which of the n prospective children
//     will become current — drawn now so the draw sequence (and therefore
//     the tree shape under a seeded Rand) is independent of how many
//     children the producer actually returns;
//  5. calls produce(n, versions) and attaches the returned children, in
//     order, under the chosen parent;
//  6. moves the current pointer to the pre-selected child, index taken
//     modulo the actual number of attached children — deliberate, not a
//     bug, when the producer returns fewer children than requested (see
//     DESIGN.md);
//  7. increments maxLevel.
//
// Returns the new current version.
func (t *Tree) BranchRandom(produce Producer) (string, error) {
	candidates := t.nodesAtMaxLevel()
	if len(candidates) == 0 {
		return "", fmt.Errorf("persona: no nodes at max level %d", t.maxLevel)
	}
	parent := candidates[t.rnd.Intn(len(candidates))]

	n := 1 + t.rnd.Intn(4)
	newLevel := t.maxLevel + 1
	versions := make([]string, n)
	for i := 0; i < n; i++ {
		versions[i] = fmt.Sprintf("%d@%d", newLevel, i+1)
	}

	preSelected := t.rnd.Intn(n)

	specs := produce(n, versions)
	if len(specs) > n {
		specs = specs[:n]
	}

	children := make([]*Node, 0, len(specs))
	for _, spec := range specs {
		child := &Node{Version: spec.Version, Level: newLevel, Data: spec.Data, Children: []*Node{}}
		children = append(children, child)
		t.byVer[child.Version] = child
	}
	parent.Children = append(parent.Children, children...)

	if len(children) > 0 {
		t.current = children[preSelected%len(children)].Version
	}
	t.maxLevel = newLevel

	return t.current, nil
}

// treeDoc is the tree's serialized wire shape.
type treeDoc struct {
	Root        *Node   `json:"root"`
	MaxLevel    int     `json:"maxLevel"`
	CurrentNode *string `json:"currentNode"`
}

// Save serializes the tree to its normative JSON form.
func (t *Tree) Save() (string, error) {
	cur := t.current
	doc := treeDoc{Root: t.root, MaxLevel: t.maxLevel, CurrentNode: &cur}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("persona: failed to marshal tree: %w", err)
	}
	return string(data), nil
}

// Load restores a tree from its serialized JSON form, rebuilding the
// version index and reattaching the pluggable random source (which is not
// itself part of observable state).
func Load(serialized string, rnd Rand) (*Tree, error) {
	var doc treeDoc
	if err := json.Unmarshal([]byte(serialized), &doc); err != nil {
		return nil, fmt.Errorf("persona: failed to unmarshal tree: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("persona: serialized tree has no root")
	}
	if rnd == nil {
		rnd = NewSystemRand()
	}

	t := &Tree{root: doc.Root, maxLevel: doc.MaxLevel, byVer: make(map[string]*Node), rnd: rnd}
	var index func(n *Node)
	index = func(n *Node) {
		t.byVer[n.Version] = n
		for _, c := range n.Children {
			index(c)
		}
	}
	index(t.root)

	if doc.CurrentNode != nil {
		t.current = *doc.CurrentNode
	} else {
		t.current = t.root.Version
	}
	if _, ok := t.byVer[t.current]; !ok {
		return nil, fmt.Errorf("persona: current version %q does not exist in restored tree", t.current)
	}
	return t, nil
}
