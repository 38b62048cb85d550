package flashcard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in      string
		want    Grade
		wantErr bool
	}{
		{"good", GradeGood, false},
		{"EASY", GradeEasy, false},
		{" hard ", GradeHard, false},
		{"again", GradeAgain, false},
		{"medium", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGrade(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidGrade, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestReviewFirstSuccess(t *testing.T) {
	s := Review(NewSchedule(reviewTime), GradeGood, reviewTime)

	assert.Equal(t, 1, s.IntervalDays)
	assert.Equal(t, 1, s.Repetitions)
	assert.Equal(t, reviewTime.AddDate(0, 0, 1), s.NextReview)
}

func TestReviewSecondSuccess(t *testing.T) {
	s := Review(NewSchedule(reviewTime), GradeGood, reviewTime)
	s = Review(s, GradeGood, reviewTime)

	assert.Equal(t, 6, s.IntervalDays)
	assert.Equal(t, 2, s.Repetitions)
}

func TestReviewThirdSuccessUsesEaseFactor(t *testing.T) {
	s := Schedule{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}
	s = Review(s, GradeGood, reviewTime)

	// 6 * 2.5 = 15 days.
	assert.Equal(t, 15, s.IntervalDays)
	assert.Equal(t, 3, s.Repetitions)
	assert.InDelta(t, 2.5, s.EaseFactor, 0.001, "good keeps the ease factor unchanged")
}

func TestReviewAgainResets(t *testing.T) {
	s := Schedule{EaseFactor: 2.5, IntervalDays: 15, Repetitions: 3}
	s = Review(s, GradeAgain, reviewTime)

	assert.Equal(t, 0, s.IntervalDays)
	assert.Equal(t, 0, s.Repetitions)
	assert.Equal(t, reviewTime, s.NextReview, "failed card is due immediately")
	assert.Less(t, s.EaseFactor, 2.5, "failing lowers the ease factor")
}

func TestReviewEasyRaisesEaseFactor(t *testing.T) {
	s := Schedule{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}
	s = Review(s, GradeEasy, reviewTime)

	assert.InDelta(t, 2.6, s.EaseFactor, 0.001)
}

func TestReviewEaseFactorFloor(t *testing.T) {
	s := Schedule{EaseFactor: 1.3, IntervalDays: 1, Repetitions: 1}
	for range 10 {
		s = Review(s, GradeHard, reviewTime)
	}
	assert.GreaterOrEqual(t, s.EaseFactor, MinEaseFactor)
}

func TestReviewPassingIntervalNeverShrinks(t *testing.T) {
	grades := []Grade{GradeHard, GradeGood, GradeEasy}

	for _, grade := range grades {
		s := NewSchedule(reviewTime)
		prev := 0
		for range 8 {
			s = Review(s, grade, reviewTime)
			assert.GreaterOrEqual(t, s.IntervalDays, prev,
				"grade %s shrank the interval", grade)
			prev = s.IntervalDays
		}
	}
}

func TestReviewHardGrowsSlowerThanEasy(t *testing.T) {
	hard := Schedule{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}
	easy := hard

	hard = Review(hard, GradeHard, reviewTime)
	easy = Review(easy, GradeEasy, reviewTime)

	assert.Less(t, hard.IntervalDays, easy.IntervalDays)
}

func TestNewSchedule(t *testing.T) {
	s := NewSchedule(reviewTime)
	assert.Equal(t, DefaultEaseFactor, s.EaseFactor)
	assert.Zero(t, s.IntervalDays)
	assert.Zero(t, s.Repetitions)
	assert.Equal(t, reviewTime, s.NextReview)
}
