package provenance

// Descriptor is the 4-tuple a transition is built from, plus the timestamp
// folded into the hash.
type Descriptor struct {
	Timestamp int64 // milliseconds since epoch
	From      string
	To        string
	Action    string
	Params    Value
}

// canon returns the canonical byte encoding of the descriptor, keys sorted
// lexicographically.
func (d Descriptor) canon() []byte {
	obj := map[string]Value{
		"timestamp": Number(float64(d.Timestamp)),
		"from":      String(d.From),
		"to":        String(d.To),
		"action":    String(d.Action),
		"params":    d.Params,
	}
	return Object(obj).Canon()
}

// Proof is the signed, Merkle-anchored record of one accepted transition.
// Field names and JSON tags are the normative wire format.
type Proof struct {
	StateHash   string   `json:"stateHash"`
	PrevHash    string   `json:"prevHash"`
	MerkleRoot  string   `json:"merkleRoot"`
	MerkleProof []string `json:"merkleProof"`
	Signature   string   `json:"signature"`
	Timestamp   int64    `json:"timestamp"`
}
