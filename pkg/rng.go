package propagation

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
)

// RandomSource is the single random stream of an engine. Every sampling step
// draws from it in call order, so the output is a function of the seed and
// of the exact sequence of draws. It is not safe for concurrent use.
type RandomSource struct {
	src  *rand.PCG
	rand *rand.Rand
	seed [2]uint64
}

func NewRandomSource(seed1, seed2 uint64) *RandomSource {
	src := rand.NewPCG(seed1, seed2)
	return &RandomSource{
		src:  src,
		rand: rand.New(src),
		seed: [2]uint64{seed1, seed2},
	}
}

// NewDeterministicRandomSource derives the seed from the run identity and the
// full configuration.
func NewDeterministicRandomSource(runID string, config Configuration) (*RandomSource, error) {
	seed1, seed2, err := DeterministicSeed(runID, config)
	if err != nil {
		return nil, err
	}
	return NewRandomSource(seed1, seed2), nil
}

// NewEntropyRandomSource seeds from the runtime's entropy-seeded generator.
func NewEntropyRandomSource() *RandomSource {
	return NewRandomSource(rand.Uint64(), rand.Uint64())
}

func DeterministicSeed(runID string, config Configuration) (uint64, uint64, error) {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return 0, 0, fmt.Errorf("error hashing configuration: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(runID))
	h.Write([]byte{0})
	h.Write(configJSON)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16]), nil
}

func (r *RandomSource) Seed() [2]uint64 {
	return r.seed
}

// Source exposes the underlying generator for gonum distributions.
func (r *RandomSource) Source() rand.Source {
	return r.src
}

func (r *RandomSource) Float64() float64 {
	return r.rand.Float64()
}

func (r *RandomSource) NormFloat64() float64 {
	return r.rand.NormFloat64()
}

// SkewNormal draws from a skew-normal distribution with location loc, scale
// scale and shape a.
func (r *RandomSource) SkewNormal(loc, scale, a float64) float64 {
	delta := a / math.Sqrt(1+a*a)
	u0 := r.rand.NormFloat64()
	v := r.rand.NormFloat64()
	u1 := delta*u0 + math.Sqrt(1-delta*delta)*v
	if u0 < 0 {
		u1 = -u1
	}
	return loc + scale*u1
}
