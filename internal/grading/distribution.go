package grading

import (
	"math"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Bucket is the integer share of a total assigned to one distribution key.
type Bucket struct {
	Key   string
	Count int
}

// Distribute splits total across entries in proportion to their percentages. Counts are
// rounded individually; any shortfall against total is added to the first bucket.
// An empty or zero-sum distribution yields no buckets.
func Distribute(total int, entries []models.DistributionEntry) []Bucket {
	if len(entries) == 0 || total <= 0 {
		return nil
	}
	sum := 0.0
	for _, e := range entries {
		if e.Percent > 0 {
			sum += e.Percent
		}
	}
	if sum == 0 {
		return nil
	}

	buckets := make([]Bucket, 0, len(entries))
	assigned := 0
	for _, e := range entries {
		pct := math.Max(e.Percent, 0)
		count := int(math.Round(float64(total) * pct / sum))
		buckets = append(buckets, Bucket{Key: e.Key, Count: count})
		assigned += count
	}
	if assigned < total {
		buckets[0].Count += total - assigned
	}
	return buckets
}

// ComboCount is the number of questions requested for one (type, difficulty) pair.
func ComboCount(typeCount, difficultyCount, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(typeCount) * float64(difficultyCount) / float64(total)))
}

// DifficultyLevels maps a difficulty label to bank levels. Unknown labels return nil,
// meaning no narrowing.
func DifficultyLevels(label string) []int {
	switch label {
	case "easy", "EASY", "Easy":
		return []int{1, 2}
	case "medium", "MEDIUM", "Medium":
		return []int{3}
	case "hard", "HARD", "Hard":
		return []int{4, 5}
	case "1", "2", "3", "4", "5":
		return []int{int(label[0] - '0')}
	default:
		return nil
	}
}
