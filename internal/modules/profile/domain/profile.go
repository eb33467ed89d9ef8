package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	apperrors "tempo/internal/platform/errors"
)

// Alpha is the EMA smoothing factor: new = Alpha*observation + (1-Alpha)*old.
const Alpha = 0.3

// PeakThreshold is the score above which an hour or day counts as a peak.
const PeakThreshold = 0.7

// Profile is a user's learned productivity pattern. Update methods never mutate the receiver.
type Profile struct {
	ID                  string
	UserID              string
	PeakHours           [24]float64
	PeakDays            [7]float64
	AvgTaskDuration     float64
	CompletionRate      float64
	CategoryPreferences map[string]float64
	Observations        int
	DurationSamples     int
	CompletionSamples   int
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func NewProfile(id, userID string, now time.Time) (Profile, error) {
	if strings.TrimSpace(id) == "" {
		return Profile{}, fmt.Errorf("%w: profile id is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	now = now.UTC()
	return Profile{
		ID:                  id,
		UserID:              userID,
		CategoryPreferences: map[string]float64{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func ema(observation, old float64) float64 {
	return Alpha*observation + (1-Alpha)*old
}

func validScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return fmt.Errorf("%w: score %v outside [0,1]", apperrors.ErrInvalidInput, score)
	}
	return nil
}

func (p Profile) UpdatePeakHour(hour int, score float64) (Profile, error) {
	if hour < 0 || hour > 23 {
		return Profile{}, fmt.Errorf("%w: hour %d outside [0,23]", apperrors.ErrInvalidInput, hour)
	}
	if err := validScore(score); err != nil {
		return Profile{}, err
	}
	next := p.clone()
	next.PeakHours[hour] = ema(score, p.PeakHours[hour])
	return next, nil
}

func (p Profile) UpdatePeakDay(day time.Weekday, score float64) (Profile, error) {
	if day < time.Sunday || day > time.Saturday {
		return Profile{}, fmt.Errorf("%w: day %d outside [0,6]", apperrors.ErrInvalidInput, int(day))
	}
	if err := validScore(score); err != nil {
		return Profile{}, err
	}
	next := p.clone()
	next.PeakDays[day] = ema(score, p.PeakDays[day])
	return next, nil
}

// UpdateCompletionRate folds completed/total into the rate. The first sample sets it directly.
func (p Profile) UpdateCompletionRate(completed, total int) (Profile, error) {
	if total <= 0 {
		return Profile{}, fmt.Errorf("%w: total must be positive, got %d", apperrors.ErrInvalidInput, total)
	}
	if completed < 0 || completed > total {
		return Profile{}, fmt.Errorf("%w: completed %d outside [0,%d]", apperrors.ErrInvalidInput, completed, total)
	}
	observed := float64(completed) / float64(total)
	next := p.clone()
	if p.CompletionSamples == 0 {
		next.CompletionRate = observed
	} else {
		next.CompletionRate = ema(observed, p.CompletionRate)
	}
	next.CompletionSamples++
	return next, nil
}

// UpdateCategoryPreference blends score into the category. Unseen categories start at score.
func (p Profile) UpdateCategoryPreference(category string, score float64) (Profile, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Profile{}, fmt.Errorf("%w: category is required", apperrors.ErrInvalidInput)
	}
	if err := validScore(score); err != nil {
		return Profile{}, err
	}
	next := p.clone()
	old, seen := p.CategoryPreferences[category]
	if seen {
		next.CategoryPreferences[category] = ema(score, old)
	} else {
		next.CategoryPreferences[category] = score
	}
	return next, nil
}

// RecalculateAvgDuration applies the EMA over recent durations (minutes, oldest first).
// The seed is the current average, or the first element when nothing has been sampled yet.
func (p Profile) RecalculateAvgDuration(recent []float64) (Profile, error) {
	for _, d := range recent {
		if math.IsNaN(d) || d < 0 {
			return Profile{}, fmt.Errorf("%w: duration %v must be non-negative", apperrors.ErrInvalidInput, d)
		}
	}
	next := p.clone()
	if len(recent) == 0 {
		return next, nil
	}
	avg := p.AvgTaskDuration
	rest := recent
	if p.DurationSamples == 0 {
		avg = recent[0]
		rest = recent[1:]
	}
	for _, d := range rest {
		avg = ema(d, avg)
	}
	next.AvgTaskDuration = avg
	next.DurationSamples += len(recent)
	return next, nil
}

func (p Profile) IsPeakHour(hour int) bool {
	return hour >= 0 && hour < 24 && p.PeakHours[hour] > PeakThreshold
}

func (p Profile) IsPeakDay(day time.Weekday) bool {
	return day >= time.Sunday && day <= time.Saturday && p.PeakDays[day] > PeakThreshold
}

type HourScore struct {
	Hour  int
	Score float64
}

type DayScore struct {
	Day   time.Weekday
	Score float64
}

type CategoryScore struct {
	Category string
	Score    float64
}

// TopPeakHours returns up to n hours by descending score, ties by ascending hour.
func (p Profile) TopPeakHours(n int) []HourScore {
	out := make([]HourScore, 0, len(p.PeakHours))
	for h, s := range p.PeakHours {
		out = append(out, HourScore{Hour: h, Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Hour < out[j].Hour
	})
	return out[:clampN(n, len(out))]
}

func (p Profile) TopPeakDays(n int) []DayScore {
	out := make([]DayScore, 0, len(p.PeakDays))
	for d, s := range p.PeakDays {
		out = append(out, DayScore{Day: time.Weekday(d), Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Day < out[j].Day
	})
	return out[:clampN(n, len(out))]
}

func (p Profile) TopCategories(n int) []CategoryScore {
	out := make([]CategoryScore, 0, len(p.CategoryPreferences))
	for c, s := range p.CategoryPreferences {
		out = append(out, CategoryScore{Category: c, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Category < out[j].Category
	})
	return out[:clampN(n, len(out))]
}

// Validate checks every stored score is inside [0,1].
func (p Profile) Validate() error {
	for h, s := range p.PeakHours {
		if err := validScore(s); err != nil {
			return fmt.Errorf("peak hour %d: %w", h, err)
		}
	}
	for d, s := range p.PeakDays {
		if err := validScore(s); err != nil {
			return fmt.Errorf("peak day %d: %w", d, err)
		}
	}
	if err := validScore(p.CompletionRate); err != nil {
		return fmt.Errorf("completion rate: %w", err)
	}
	for c, s := range p.CategoryPreferences {
		if err := validScore(s); err != nil {
			return fmt.Errorf("category %s: %w", c, err)
		}
	}
	if p.AvgTaskDuration < 0 {
		return fmt.Errorf("%w: average duration is negative", apperrors.ErrInvalidInput)
	}
	return nil
}

func clampN(n, size int) int {
	if n < 0 {
		return 0
	}
	if n > size {
		return size
	}
	return n
}

func (p Profile) clone() Profile {
	next := p
	next.CategoryPreferences = make(map[string]float64, len(p.CategoryPreferences))
	for k, v := range p.CategoryPreferences {
		next.CategoryPreferences[k] = v
	}
	return next
}
