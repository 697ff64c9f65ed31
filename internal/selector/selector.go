package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/artforge-backend/internal/preference"
)

const DefaultEpsilon = 0.2

var ErrEmptyCategory = errors.New("selector: empty category")

// Selector picks one key per call with an epsilon-greedy policy.
type Selector struct {
	mu      sync.Mutex
	epsilon float64
	rng     *rand.Rand
}

// New returns a selector exploring with probability epsilon (clamped to [0,1]).
// A nil rng is replaced with a time-seeded one.
func New(epsilon float64, rng *rand.Rand) *Selector {
	if epsilon < 0 {
		epsilon = 0
	}
	if epsilon > 1 {
		epsilon = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{epsilon: epsilon, rng: rng}
}

// NewSeeded is New with a deterministic source.
func NewSeeded(epsilon float64, seed int64) *Selector {
	return New(epsilon, rand.New(rand.NewSource(seed)))
}

func (s *Selector) Epsilon() float64 { return s.epsilon }

// Select returns a uniformly random key with probability epsilon and the
// best-rated key otherwise. Ties on rating go to the lexically smaller key.
func (s *Selector) Select(entries []preference.Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrEmptyCategory
	}

	s.mu.Lock()
	r := s.rng.Float64()
	explore := r < s.epsilon
	var pick int
	if explore {
		pick = s.rng.Intn(len(entries))
	}
	s.mu.Unlock()

	if explore {
		return entries[pick].Key, nil
	}
	return Best(entries), nil
}

// Pick draws from one category of the model.
func (s *Selector) Pick(model *preference.Model, category preference.Category) (string, error) {
	key, err := s.Select(model.Snapshot(category))
	if err != nil {
		return "", fmt.Errorf("select %s: %w", category, err)
	}
	return key, nil
}

// Best returns the exploitation choice, or "" for no entries.
func Best(entries []preference.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	ranked := make([]preference.Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rating(), ranked[j].Rating()
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Key < ranked[j].Key
	})
	return ranked[0].Key
}
