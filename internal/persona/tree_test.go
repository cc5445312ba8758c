package persona

import (
	"testing"

	"github.com/ocx/provenance/internal/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoProducer(n int, versions []string) []ChildSpec {
	specs := make([]ChildSpec, 0, n)
	for i, v := range versions {
		specs = append(specs, ChildSpec{
			Data:    provenance.Object(map[string]provenance.Value{"idx": provenance.Number(float64(i))}),
			Version: v,
		})
	}
	return specs
}

func TestNew_RootAtZeroAtOne(t *testing.T) {
	tree := New(provenance.String("seed"), NewFixedRand(0))
	assert.Equal(t, "0@1", tree.CurrentVersion())
	assert.Equal(t, 0, tree.MaxLevel())
	root := tree.Current()
	require.NotNil(t, root)
	assert.Equal(t, 0, root.Level)
}

// S5 — tree branching determinism: a fixed draw sequence must always produce
// the same tree shape and the same current pointer.
func TestBranchRandom_DeterministicWithFixedRand(t *testing.T) {
	// draws: parent-index, childCount-1, preSelected — repeated per call.
	rnd := NewFixedRand(0, 2, 1) // n = 1+2%4 = 3, preSelected = 1%3 = 1
	tree := New(provenance.String("root"), rnd)

	cur, err := tree.BranchRandom(echoProducer)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.MaxLevel())
	assert.Equal(t, "1@2", cur)

	rootNode, ok := tree.Node("0@1")
	require.True(t, ok)
	require.Len(t, rootNode.Children, 3)
	assert.Equal(t, "1@1", rootNode.Children[0].Version)
	assert.Equal(t, "1@2", rootNode.Children[1].Version)
	assert.Equal(t, "1@3", rootNode.Children[2].Version)
}

func TestBranchRandom_SameSeedProducesSameShape(t *testing.T) {
	build := func() *Tree {
		tree := New(provenance.Number(0), SeededRand(42))
		for i := 0; i < 3; i++ {
			_, err := tree.BranchRandom(echoProducer)
			require.NoError(t, err)
		}
		return tree
	}

	a := build()
	b := build()

	savedA, err := a.Save()
	require.NoError(t, err)
	savedB, err := b.Save()
	require.NoError(t, err)
	assert.Equal(t, savedA, savedB)
}

func TestBranchRandom_ProducerReturningFewerThanNFallsBackByMod(t *testing.T) {
	// n will be 1+1%4 = 2, but the producer only returns one child. The
	// pre-selected index (drawn before the producer ran) is taken modulo
	// the actual child count, per the documented fallback.
	rnd := NewFixedRand(0, 1, 1) // parent=0, n=2, preSelected=1
	tree := New(provenance.Null(), rnd)

	short := func(n int, versions []string) []ChildSpec {
		return []ChildSpec{{Data: provenance.Null(), Version: versions[0]}}
	}

	cur, err := tree.BranchRandom(short)
	require.NoError(t, err)

	root, _ := tree.Node("0@1")
	require.Len(t, root.Children, 1)
	assert.Equal(t, root.Children[0].Version, cur) // preSelected(1) % 1 == 0
}

func TestBranchRandom_SelectsAmongAllMaxLevelNodes(t *testing.T) {
	rnd := NewFixedRand(0, 0, 0) // n = 1, preSelected = 0
	tree := New(provenance.Null(), rnd)

	_, err := tree.BranchRandom(echoProducer)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.MaxLevel())

	// Second branch must pick among level-1 nodes (there is exactly one),
	// moving to level 2.
	_, err = tree.BranchRandom(echoProducer)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.MaxLevel())
}

func TestUpdateCurrent_MutatesInPlace(t *testing.T) {
	tree := New(provenance.String("v0"), NewFixedRand(0))
	tree.UpdateCurrent(provenance.String("v1"))
	assert.Equal(t, provenance.String("v1").Canon(), tree.Current().Data.Canon())
}

func TestSaveLoad_RoundTripsShapeAndCurrent(t *testing.T) {
	tree := New(provenance.String("root"), NewFixedRand(0, 1, 0))
	_, err := tree.BranchRandom(echoProducer)
	require.NoError(t, err)

	serialized, err := tree.Save()
	require.NoError(t, err)

	restored, err := Load(serialized, NewFixedRand(0))
	require.NoError(t, err)

	assert.Equal(t, tree.CurrentVersion(), restored.CurrentVersion())
	assert.Equal(t, tree.MaxLevel(), restored.MaxLevel())

	originalRoot, _ := tree.Node("0@1")
	restoredRoot, ok := restored.Node("0@1")
	require.True(t, ok)
	assert.Equal(t, len(originalRoot.Children), len(restoredRoot.Children))
}

func TestLoad_RejectsMissingCurrentVersion(t *testing.T) {
	_, err := Load(`{"root":{"version":"0@1","level":0,"data":null,"children":[]},"maxLevel":0,"currentNode":"9@9"}`, nil)
	require.Error(t, err)
}

func TestPrint_MarksCurrentNode(t *testing.T) {
	tree := New(provenance.String("root"), NewFixedRand(0, 0, 0))
	_, err := tree.BranchRandom(echoProducer)
	require.NoError(t, err)

	out := tree.Print()
	assert.Contains(t, out, "0@1")
	assert.Contains(t, out, " *")
}

func TestPrintMinimal_OmitsPayload(t *testing.T) {
	tree := New(provenance.Object(map[string]provenance.Value{"big": provenance.String("payload")}), NewFixedRand(0))
	out := tree.PrintMinimal()
	assert.NotContains(t, out, "payload")
	assert.Contains(t, out, "0@1")
}
