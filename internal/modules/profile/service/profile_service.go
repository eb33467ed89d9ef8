package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tempo/internal/modules/profile/domain"
	profileout "tempo/internal/modules/profile/port/out"
	"tempo/internal/platform/clock"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/id"
	"tempo/internal/platform/keylock"
	"tempo/internal/platform/observability"
	"tempo/internal/platform/tx"
)

const DefaultMaxRetries = 3

type Options struct {
	MaxRetries int
	Location   *time.Location
}

type ProfileService struct {
	clock      clock.Clock
	idGen      id.Generator
	repo       profileout.ProfileRepository
	marker     profileout.SessionMarker
	tx         tx.Manager
	locks      *keylock.Map
	maxRetries int
	loc        *time.Location
}

func NewProfileService(clock clock.Clock, idGen id.Generator, repo profileout.ProfileRepository, marker profileout.SessionMarker, txm tx.Manager, opts Options) *ProfileService {
	if txm == nil {
		txm = tx.Passthrough{}
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ProfileService{
		clock:      clock,
		idGen:      idGen,
		repo:       repo,
		marker:     marker,
		tx:         txm,
		locks:      keylock.New(),
		maxRetries: opts.MaxRetries,
		loc:        opts.Location,
	}
}

type LearnResult struct {
	Profile  domain.Profile
	Score    float64
	Attempts int
}

// Learn applies one observation to the user's profile and marks the session learned in the
// same transaction. Writers for one user are serialised in process; a version conflict from
// another process reloads the profile and reapplies the observation.
func (s *ProfileService) Learn(ctx context.Context, obs domain.Observation) (LearnResult, error) {
	if err := obs.Validate(); err != nil {
		return LearnResult{}, err
	}
	unlock, err := s.locks.Lock(ctx, obs.UserID)
	if err != nil {
		return LearnResult{}, err
	}
	defer unlock()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		result, err := s.learnOnce(ctx, obs)
		if errors.Is(err, apperrors.ErrStaleVersion) {
			observability.RecordLearnRetry()
			continue
		}
		if err != nil {
			return LearnResult{}, err
		}
		result.Attempts = attempt
		return result, nil
	}
	return LearnResult{}, fmt.Errorf("learn session %s after %d attempts: %w", obs.SessionID, s.maxRetries, apperrors.ErrStaleVersion)
}

func (s *ProfileService) learnOnce(ctx context.Context, obs domain.Observation) (LearnResult, error) {
	var result LearnResult
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		fresh, err := domain.NewProfile(s.idGen.New(), obs.UserID, now)
		if err != nil {
			return err
		}
		current, err := s.repo.FindOrCreate(ctx, fresh)
		if err != nil {
			return err
		}
		next, score, err := current.Learn(obs, s.loc, now)
		if err != nil {
			return err
		}
		saved, err := s.repo.Save(ctx, next)
		if err != nil {
			return err
		}
		// the marker rejects a second learn; the surrounding tx discards the save above
		if s.marker != nil && obs.SessionID != "" {
			if err := s.marker.MarkLearned(ctx, obs.SessionID, now); err != nil {
				return err
			}
		}
		result = LearnResult{Profile: saved, Score: score}
		return nil
	})
	return result, err
}

// Current returns the stored profile, or an unsaved empty one when the user has none yet.
func (s *ProfileService) Current(ctx context.Context, userID string) (domain.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Profile{}, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	p, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, apperrors.ErrProfileNotFound) {
		return domain.NewProfile("unsaved", userID, s.clock.Now())
	}
	return p, err
}

func (s *ProfileService) Get(ctx context.Context, userID string) (domain.Profile, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *ProfileService) Reset(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.repo.Delete(ctx, userID)
}

func (s *ProfileService) Location() *time.Location {
	return s.loc
}
