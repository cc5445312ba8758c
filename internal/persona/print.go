package persona

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Print renders the tree as indented ASCII, one line per node, with the
// current node marked "*". Each node's payload is rendered as compact JSON.
func (t *Tree) Print() string {
	var b strings.Builder
	t.printNode(&b, t.root, "", true)
	return b.String()
}

func (t *Tree) printNode(b *strings.Builder, n *Node, prefix string, last bool) {
	marker := "├── "
	childPrefix := prefix + "│   "
	if last {
		marker = "└── "
		childPrefix = prefix + "    "
	}

	cur := ""
	if n.Version == t.current {
		cur = " *"
	}
	data, _ := json.Marshal(n.Data)
	fmt.Fprintf(b, "%s%s%s%s %s\n", prefix, marker, n.Version, cur, string(data))

	for i, c := range n.Children {
		t.printNode(b, c, childPrefix, i == len(n.Children)-1)
	}
}

// PrintMinimal renders just the version strings, current node marked,
// without payload data — for quick shape inspection.
func (t *Tree) PrintMinimal() string {
	var b strings.Builder
	t.printMinimal(&b, t.root, "", true)
	return b.String()
}

func (t *Tree) printMinimal(b *strings.Builder, n *Node, prefix string, last bool) {
	marker := "├── "
	childPrefix := prefix + "│   "
	if last {
		marker = "└── "
		childPrefix = prefix + "    "
	}

	cur := ""
	if n.Version == t.current {
		cur = " *"
	}
	fmt.Fprintf(b, "%s%s%s%s\n", prefix, marker, n.Version, cur)

	for i, c := range n.Children {
		t.printMinimal(b, c, childPrefix, i == len(n.Children)-1)
	}
}
