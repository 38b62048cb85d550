// Package flashcard implements spaced repetition over stored cards using
// the SuperMemo-2 algorithm.
package flashcard

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Grade is the student's self-assessment of a review.
type Grade string

const (
	GradeAgain Grade = "again" // forgot entirely
	GradeHard  Grade = "hard"  // recalled with serious difficulty
	GradeGood  Grade = "good"  // recalled with some hesitation
	GradeEasy  Grade = "easy"  // perfect recall
)

// ErrInvalidGrade is returned for unrecognized grade strings.
var ErrInvalidGrade = errors.New("invalid grade")

// ParseGrade parses a grade string, case-insensitively.
func ParseGrade(s string) (Grade, error) {
	switch Grade(strings.ToLower(strings.TrimSpace(s))) {
	case GradeAgain:
		return GradeAgain, nil
	case GradeHard:
		return GradeHard, nil
	case GradeGood:
		return GradeGood, nil
	case GradeEasy:
		return GradeEasy, nil
	default:
		return "", fmt.Errorf("%w: %q (want again, hard, good, or easy)", ErrInvalidGrade, s)
	}
}

// quality maps a grade onto the SM-2 0-5 quality scale.
func (g Grade) quality() int {
	switch g {
	case GradeAgain:
		return 2
	case GradeHard:
		return 3
	case GradeGood:
		return 4
	default:
		return 5
	}
}

const (
	// DefaultEaseFactor is the starting ease for a new card.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the SM-2 floor; below this cards repeat too densely
	// to be worth scheduling.
	MinEaseFactor = 1.3
)

// Schedule is a card's spaced-repetition state.
type Schedule struct {
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
	NextReview   time.Time
}

// NewSchedule returns the state for a freshly generated card: due
// immediately with the default ease.
func NewSchedule(now time.Time) Schedule {
	return Schedule{
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: 0,
		Repetitions:  0,
		NextReview:   now,
	}
}

// Review applies one SM-2 review step.
//
// A failing grade (again) resets the repetition streak and schedules the
// card for immediate review. A passing grade grows the interval: 1 day
// after the first success, 6 after the second, then the previous interval
// times the ease factor. Because the ease factor never drops below
// MinEaseFactor (> 1), a passing review never shortens the interval.
func Review(s Schedule, grade Grade, now time.Time) Schedule {
	q := grade.quality()

	ef := s.EaseFactor + (0.1 - float64(5-q)*(0.08+float64(5-q)*0.02))
	ef = math.Max(ef, MinEaseFactor)

	if q < 3 {
		return Schedule{
			EaseFactor:   ef,
			IntervalDays: 0,
			Repetitions:  0,
			NextReview:   now,
		}
	}

	reps := s.Repetitions + 1
	var interval int
	switch reps {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		interval = int(math.Round(float64(s.IntervalDays) * ef))
	}
	if interval < s.IntervalDays {
		// Guards the rounding edge; ef >= 1.3 already implies growth.
		interval = s.IntervalDays
	}

	return Schedule{
		EaseFactor:   ef,
		IntervalDays: interval,
		Repetitions:  reps,
		NextReview:   now.AddDate(0, 0, interval),
	}
}
