package scoring

import (
	"math"
	"slices"

	"github.com/mcoot/estimategame/internal/model"
)

// Scoring constants
const (
	// BasePoints is awarded to every non-extreme submitter
	BasePoints = 5
	// ProximityPoints is awarded on top of BasePoints to the non-extreme
	// submitters closest to the median
	ProximityPoints = 20
	// MinSubmissions is the smallest submission set that can be scored
	MinSubmissions = 2
)

// Submission is one entry of a round submission set. A nil Value means the
// player did not submit and is left out of the comparison.
type Submission struct {
	PlayerID model.PlayerID
	Value    *float64
}

// ServiceInterface allows the state machine to be tested with a stub engine
type ServiceInterface interface {
	Score(submissions []Submission) *model.RoundResult
}

// Service computes round results. It holds no state.
type Service struct{}

// New creates a new scoring Service
func New() *Service {
	return &Service{}
}

var _ ServiceInterface = (*Service)(nil)

// Score computes the per-player deltas and the display data for a round.
//
// The median of an even-sized set is the lower-middle value. The extreme rule
// (value equal to the round min or max scores nothing) is skipped for groups
// of two or fewer and when every value is identical. Entries keep the order
// of the input, which callers pass in join order.
func (s *Service) Score(submissions []Submission) *model.RoundResult {
	result := &model.RoundResult{
		Winners: []model.PlayerID{},
		Entries: make([]model.ResultEntry, len(submissions)),
	}

	var values []float64
	for i, sub := range submissions {
		result.Entries[i] = model.ResultEntry{PlayerID: sub.PlayerID}
		if sub.Value != nil {
			v := *sub.Value
			result.Entries[i].Estimation = &v
			values = append(values, v)
		}
	}
	result.Submissions = len(values)
	if len(values) == 0 {
		return result
	}

	slices.Sort(values)
	result.Min = values[0]
	result.Max = values[len(values)-1]
	result.Median = Median(values)

	if len(values) < MinSubmissions {
		return result
	}

	extremeRule := len(values) > 2 && result.Min != result.Max

	minDist := math.Inf(1)
	for i := range result.Entries {
		e := &result.Entries[i]
		if e.Estimation == nil {
			continue
		}
		v := *e.Estimation
		if extremeRule && (v == result.Min || v == result.Max) {
			e.Extreme = true
			continue
		}
		e.Delta = BasePoints
		if d := math.Abs(v - result.Median); d < minDist {
			minDist = d
		}
	}

	for i := range result.Entries {
		e := &result.Entries[i]
		if e.Estimation == nil || e.Extreme {
			continue
		}
		if math.Abs(*e.Estimation-result.Median) == minDist {
			e.Delta += ProximityPoints
			result.Winners = append(result.Winners, e.PlayerID)
		}
	}

	return result
}

// Median returns the middle value of an ascending slice, picking the
// lower-middle element when the length is even. It panics on an empty slice.
func Median(sorted []float64) float64 {
	return sorted[(len(sorted)-1)/2]
}
