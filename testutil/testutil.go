package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/distance"
	"github.com/hupe1980/docdb/model"
)

// RNG is a seeded, goroutine-safe source of test vectors.
type RNG struct {
	mu   sync.Mutex
	seed int64
	src  *rand.Rand
}

// NewRNG returns an RNG that replays the same sequence for the same seed.
func NewRNG(seed int64) *RNG {
	return &RNG{seed: seed, src: rand.New(rand.NewSource(seed))}
}

// Reset rewinds the RNG to its seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	r.src = rand.New(rand.NewSource(r.seed))
	r.mu.Unlock()
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 { return r.seed }

// UnitVector draws a direction uniformly from the unit hypersphere.
func (r *RNG) UnitVector(dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.src.NormFloat64())
	}
	if !distance.NormalizeL2InPlace(v) {
		v[0] = 1
	}
	return v
}

// UnitVectors draws n unit vectors.
func (r *RNG) UnitVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = r.UnitVector(dim)
	}
	return out
}

// Tags used by Corpus, cycling per row.
var Tags = []string{"introduction", "condition", "symptoms", "treatment"}

// Corpus builds a synthetic index of n unit vectors. Row i has ID "doc-i",
// reference "docs/doc-i.md" and tag Tags[i%len(Tags)]. Every fourth row
// points at the preceding multiple of four as its parent.
func Corpus(rng *RNG, n, dim int) *codec.Contents {
	c := &codec.Contents{
		Dimension: dim,
		Matrix:    make([]float32, 0, n*dim),
		Records:   make([]model.Record, n),
	}
	for i := range n {
		c.Matrix = append(c.Matrix, rng.UnitVector(dim)...)
		rec := model.Record{
			ID:        fmt.Sprintf("doc-%d", i),
			Title:     fmt.Sprintf("Document %d", i),
			Reference: fmt.Sprintf("docs/doc-%d.md", i),
			Tags:      []string{Tags[i%len(Tags)]},
		}
		if i%4 != 0 {
			rec.Parent = fmt.Sprintf("doc-%d", i-i%4)
		}
		c.Records[i] = rec
	}
	return c
}

// FromVectors builds contents from explicit rows with IDs "doc-0".."doc-n".
func FromVectors(vectors [][]float32) *codec.Contents {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	c := &codec.Contents{Dimension: dim, Records: make([]model.Record, len(vectors))}
	for i, v := range vectors {
		c.Matrix = append(c.Matrix, v...)
		c.Records[i] = model.Record{
			ID:        fmt.Sprintf("doc-%d", i),
			Title:     fmt.Sprintf("Document %d", i),
			Reference: fmt.Sprintf("docs/doc-%d.md", i),
		}
	}
	return c
}

// MustEncode encodes c and fails the test on error.
func MustEncode(tb testing.TB, c *codec.Contents, optFns ...func(o *codec.EncodeOptions)) []byte {
	tb.Helper()
	blob, err := codec.Encode(c, optFns...)
	if err != nil {
		tb.Fatalf("encode: %v", err)
	}
	return blob
}

// ExactTopK returns the rows of the k most cosine-similar vectors in c,
// ordered by score descending and row ascending. Rows with a zero norm rank
// last.
func ExactTopK(query []float32, c *codec.Contents, k int) []int {
	type scored struct {
		row   int
		score float64
	}
	all := make([]scored, c.Rows())
	for i := range all {
		row := c.Matrix[i*c.Dimension : (i+1)*c.Dimension]
		s, ok := distance.Cosine(query, row)
		if !ok {
			s = math.Inf(-1)
		}
		all[i] = scored{row: i, score: s}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].row < all[j].row
	})

	k = min(k, len(all))
	rows := make([]int, 0, k)
	for i := range k {
		rows = append(rows, all[i].row)
	}
	return rows
}
