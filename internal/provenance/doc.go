// Package provenance implements the verifiable transition log engine: a
// generic, policy-driven state machine that emits a cryptographic proof for
// every accepted transition and chains those proofs into a tamper-evident
// log.
//
// Design decisions worth remembering when reading this package:
//
//   - state_hash embeds the transition's timestamp, so it is a commitment
//     produced by the prover, not something a verifier can recompute from
//     (from, to, action, params) alone. VerifyChain treats it that way.
//   - Signatures are computed over the ASCII bytes of the hex state_hash,
//     not the raw 32-byte digest. This is a deliberate cross-compatibility
//     contract, not an oversight.
//   - The Merkle tree is rebuilt from scratch on every append. That is
//     O(n) per transition and is fine for the log sizes this engine targets
//     (thousands of entries per session, not millions).
package provenance
