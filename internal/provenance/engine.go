package provenance

import "fmt"

// engine is the C1 Proof Engine: canonical hashing, the Merkle accumulator,
// signing, and chain verification. It holds no notion of "current state" —
// that belongs to the state machine (C3); the engine only turns descriptors
// into proofs and proofs back into verdicts.
type engine struct {
	tree *merkleAccumulator
	priv *PrivateKey
}

func newEngine(priv *PrivateKey) *engine {
	return &engine{tree: newMerkleAccumulator(), priv: priv}
}

// produce builds a Proof for d, chaining it after prevHash (empty for the
// first transition in a machine's log).
func (e *engine) produce(d Descriptor, prevHash string) (Proof, error) {
	stateHash := sha256Hex(d.canon())

	idx := len(e.tree.leaves)
	root := e.tree.append(stateHash)
	path := e.tree.proofForIndex(idx, len(e.tree.leaves))

	sig, err := e.priv.sign(stateHash)
	if err != nil {
		// Roll back the leaf: signing failure must abort before the proof
		// is considered appended.
		e.tree.leaves = e.tree.leaves[:idx]
		return Proof{}, err
	}

	return Proof{
		StateHash:   stateHash,
		PrevHash:    prevHash,
		MerkleRoot:  root,
		MerkleProof: path,
		Signature:   sig,
		Timestamp:   d.Timestamp,
	}, nil
}

// VerifyChainResult is the outcome of VerifyChain: the system's normative
// trust boundary for external auditors.
type VerifyChainResult struct {
	OK       bool   `json:"ok"`
	FailedAt *int   `json:"failedAt,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// VerifyChain checks, for the given proof sequence and public key:
//
//  1. each proof's signature verifies against its state_hash;
//  2. prev_hash chaining holds;
//  3. the Merkle root recomputed over the cumulative leaves up to each
//     index matches proofs[i].merkle_root;
//  4. each proof's merkle_proof independently verifies against its root.
//
// Any failure is reported with the offending index and the invariant that
// failed; it is the only function external auditors are expected to call.
func VerifyChain(proofs []Proof, pub *PublicKey) VerifyChainResult {
	if len(proofs) == 0 {
		return VerifyChainResult{OK: true}
	}

	tree := newMerkleAccumulator()
	for i, p := range proofs {
		if i == 0 {
			if p.PrevHash != "" {
				return fail(i, "prev_hash must be empty for the first proof")
			}
		} else if p.PrevHash != proofs[i-1].StateHash {
			return fail(i, "prev_hash does not match previous proof's state_hash")
		}

		ok, err := pub.Verify(p.StateHash, p.Signature)
		if err != nil {
			return fail(i, fmt.Sprintf("signature check errored: %v", err))
		}
		if !ok {
			return fail(i, "signature does not verify against state_hash")
		}

		tree.leaves = append(tree.leaves, p.StateHash)
		root := tree.rootUpTo(i + 1)
		if root != p.MerkleRoot {
			return fail(i, "merkle_root does not match recomputed root over cumulative leaves")
		}

		if !verifyMerkleProofAt(p.StateHash, p.MerkleProof, i, p.MerkleRoot) {
			return fail(i, "merkle_proof does not verify state_hash against merkle_root")
		}
	}

	return VerifyChainResult{OK: true}
}

// fail builds the failure result from a ProofInvalid, the one error type
// VerifyChain is documented to report, so the message callers see and the
// message a typed error would carry never drift apart.
func fail(idx int, reason string) VerifyChainResult {
	err := &ProofInvalid{Index: idx, Reason: reason}
	i := idx
	return VerifyChainResult{OK: false, FailedAt: &i, Reason: err.Error()}
}
