package grading

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ErrCorrectOptionLost means a correct option could not be found again after shuffling.
var ErrCorrectOptionLost = errors.New("correct option lost during shuffle")

// Randomizer is a goroutine-safe wrapper around a seeded source.
type Randomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer returns a Randomizer seeded with seed. A zero seed draws one from the clock.
func NewRandomizer(seed uint64) *Randomizer {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Randomizer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Perm returns a random permutation of [0, n).
func (r *Randomizer) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Perm(n)
}

// ShuffleOptions runs ShuffleOptions under the randomizer's lock.
func (r *Randomizer) ShuffleOptions(q *models.Question) (*models.CustomOptions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ShuffleOptions(q, r.rng)
}

// ShuffleOptions returns a per-paper override with q's options in a random order and the
// correct-answer markers pointing at their new positions. Questions without selectable
// options, or with none defined, yield (nil, nil). q is never modified.
func ShuffleOptions(q *models.Question, rng *rand.Rand) (*models.CustomOptions, error) {
	if q == nil || !q.Type.HasOptions() || len(q.Options) == 0 {
		return nil, nil
	}

	correctIDs := make([]uint, 0, len(q.CorrectAnswers))
	for _, marker := range q.CorrectAnswers {
		idx := models.MarkerIndex(marker)
		if idx < 0 || idx >= len(q.Options) {
			return nil, ErrCorrectOptionLost
		}
		correctIDs = append(correctIDs, q.Options[idx].ID)
	}

	shuffled := make([]models.Option, len(q.Options))
	for i, j := range rng.Perm(len(q.Options)) {
		shuffled[i] = q.Options[j]
	}

	position := make(map[uint]int, len(shuffled))
	for i, opt := range shuffled {
		position[opt.ID] = i
	}

	correct := make([]string, 0, len(correctIDs))
	for _, id := range correctIDs {
		pos, ok := position[id]
		if !ok {
			return nil, ErrCorrectOptionLost
		}
		correct = append(correct, models.OptionMarker(pos))
	}

	return &models.CustomOptions{Options: shuffled, CorrectAnswer: correct}, nil
}
