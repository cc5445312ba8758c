package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerkleAccumulator_SingleLeafRootIsTheLeaf(t *testing.T) {
	acc := newMerkleAccumulator()
	root := acc.append("deadbeef")
	assert.Equal(t, "deadbeef", root)
}

func TestMerkleAccumulator_OddLeafCountDuplicatesLast(t *testing.T) {
	acc := newMerkleAccumulator()
	acc.append("a")
	acc.append("b")
	root3 := acc.append("c")

	expected := hashPair(hashPair("a", "b"), hashPair("c", "c"))
	assert.Equal(t, expected, root3)
}

func TestMerkleAccumulator_RootUpToMatchesHistoricalRoot(t *testing.T) {
	acc := newMerkleAccumulator()
	acc.append("a")
	rootAt1 := acc.root()
	acc.append("b")
	acc.append("c")

	assert.Equal(t, rootAt1, acc.rootUpTo(1))
}

func TestProofForIndex_VerifiesAtEveryPosition(t *testing.T) {
	acc := newMerkleAccumulator()
	leaves := []string{"a", "b", "c", "d", "e"}
	var root string
	for _, l := range leaves {
		root = acc.append(l)
	}

	for i, l := range leaves {
		proof := acc.proofForIndex(i, len(leaves))
		assert.True(t, verifyMerkleProofAt(l, proof, i, root), "leaf %d should verify", i)
	}
}

func TestProofForIndex_FailsAgainstWrongLeaf(t *testing.T) {
	acc := newMerkleAccumulator()
	leaves := []string{"a", "b", "c"}
	var root string
	for _, l := range leaves {
		root = acc.append(l)
	}

	proof := acc.proofForIndex(1, len(leaves))
	assert.False(t, verifyMerkleProofAt("not-b", proof, 1, root))
}

func TestProofForIndex_OutOfRangeReturnsNil(t *testing.T) {
	acc := newMerkleAccumulator()
	acc.append("a")
	assert.Nil(t, acc.proofForIndex(5, 1))
	assert.Nil(t, acc.proofForIndex(-1, 1))
}
