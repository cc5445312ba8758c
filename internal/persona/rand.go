package persona

import (
	"math/rand"
	"time"
)

// Rand is the pluggable random source for Tree.BranchRandom, so tests can
// inject determinism. It exposes exactly the primitive BranchRandom needs.
type Rand interface {
	Intn(n int) int
}

// systemRand is the default, system-seeded random source.
type systemRand struct {
	r *rand.Rand
}

// NewSystemRand returns the default random source, seeded from the wall
// clock.
func NewSystemRand() Rand {
	return &systemRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *systemRand) Intn(n int) int { return s.r.Intn(n) }

// FixedRand is a deterministic Rand driven by a caller-supplied sequence,
// for tests that need an exact, reproducible tree shape. Calls past the end
// of seq wrap around.
type FixedRand struct {
	seq []int
	pos int
}

func NewFixedRand(seq ...int) *FixedRand {
	return &FixedRand{seq: seq}
}

func (f *FixedRand) Intn(n int) int {
	if len(f.seq) == 0 {
		return 0
	}
	v := f.seq[f.pos%len(f.seq)]
	f.pos++
	if v < 0 {
		v = 0
	}
	if n > 0 {
		v %= n
	} else {
		v = 0
	}
	return v
}

// SeededRand wraps math/rand with a fixed seed, for tests that want the
// real distribution but a reproducible run.
func SeededRand(seed int64) Rand {
	return &systemRand{r: rand.New(rand.NewSource(seed))}
}
