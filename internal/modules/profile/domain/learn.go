package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "tempo/internal/platform/errors"
)

// Observation is one finished session as the learning engine sees it.
type Observation struct {
	SessionID   string
	UserID      string
	Work        bool
	Category    string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	PauseTime   time.Duration
	Completed   bool
	Interrupted bool
}

func (o Observation) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if o.StartedAt.IsZero() || o.EndedAt.IsZero() {
		return fmt.Errorf("%w: only finished sessions can be learned", apperrors.ErrInvalidInput)
	}
	if o.EndedAt.Before(o.StartedAt) {
		return fmt.Errorf("%w: session ends before it starts", apperrors.ErrInvalidInput)
	}
	if o.Duration < 0 || o.PauseTime < 0 {
		return fmt.Errorf("%w: durations must be non-negative", apperrors.ErrInvalidInput)
	}
	return nil
}

func (o Observation) Score() float64 {
	return SessionScore(SessionOutcome{
		Completed:   o.Completed,
		Interrupted: o.Interrupted,
		Elapsed:     o.EndedAt.Sub(o.StartedAt),
		PauseTime:   o.PauseTime,
	})
}

// Learn folds one observation into the profile. Hour and weekday are read in loc.
func (p Profile) Learn(o Observation, loc *time.Location, at time.Time) (Profile, float64, error) {
	if err := o.Validate(); err != nil {
		return Profile{}, 0, err
	}
	if o.UserID != p.UserID {
		return Profile{}, 0, fmt.Errorf("%w: observation for %s applied to profile of %s", apperrors.ErrInvalidInput, o.UserID, p.UserID)
	}
	if loc == nil {
		loc = time.UTC
	}
	score := o.Score()
	local := o.StartedAt.In(loc)

	next, err := p.UpdatePeakHour(local.Hour(), score)
	if err != nil {
		return Profile{}, 0, err
	}
	if next, err = next.UpdatePeakDay(local.Weekday(), score); err != nil {
		return Profile{}, 0, err
	}
	if o.Work {
		if next, err = next.RecalculateAvgDuration([]float64{o.Duration.Minutes()}); err != nil {
			return Profile{}, 0, err
		}
		completed := 0
		if o.Completed {
			completed = 1
		}
		if next, err = next.UpdateCompletionRate(completed, 1); err != nil {
			return Profile{}, 0, err
		}
	}
	if strings.TrimSpace(o.Category) != "" {
		if next, err = next.UpdateCategoryPreference(o.Category, score); err != nil {
			return Profile{}, 0, err
		}
	}
	next.Observations++
	next.UpdatedAt = at.UTC()
	return next, score, nil
}
