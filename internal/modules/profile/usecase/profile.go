package usecase

import (
	"context"
	"errors"
	"fmt"

	"tempo/internal/modules/profile/domain"
	"tempo/internal/modules/profile/dto"
	profilein "tempo/internal/modules/profile/port/in"
	"tempo/internal/modules/profile/service"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/logging"
	"tempo/internal/platform/observability"
)

const workType = "WORK"

type Interactor struct {
	svc    *service.ProfileService
	logger logging.Logger
}

func NewInteractor(svc *service.ProfileService, logger logging.Logger) profilein.Usecase {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Interactor{svc: svc, logger: logger}
}

func (i *Interactor) LearnFromSession(ctx context.Context, input dto.LearnInput) (dto.LearnOutput, error) {
	if input.Learned {
		observability.RecordLearn("already_learned", 0)
		return dto.LearnOutput{}, apperrors.ErrAlreadyLearned
	}
	if input.EndedAt == nil {
		observability.RecordLearn("rejected", 0)
		return dto.LearnOutput{}, fmt.Errorf("%w: session %s is still active", apperrors.ErrInvalidInput, input.SessionID)
	}
	obs := domain.Observation{
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Work:        input.Type == workType,
		Category:    input.Category,
		StartedAt:   input.StartedAt,
		EndedAt:     *input.EndedAt,
		Duration:    input.Duration,
		PauseTime:   input.TotalPauseTime,
		Completed:   input.WasCompleted,
		Interrupted: input.WasInterrupted,
	}
	result, err := i.svc.Learn(ctx, obs)
	switch {
	case errors.Is(err, apperrors.ErrAlreadyLearned):
		observability.RecordLearn("already_learned", 0)
		return dto.LearnOutput{}, err
	case err != nil:
		observability.RecordLearn("error", 0)
		return dto.LearnOutput{}, err
	}
	observability.RecordLearn("ok", result.Score)
	local := input.StartedAt.In(i.svc.Location())
	i.logger.Debugf("learned session %s for %s: score=%.3f attempts=%d", input.SessionID, input.UserID, result.Score, result.Attempts)
	return dto.LearnOutput{
		UserID:          input.UserID,
		SessionID:       input.SessionID,
		Score:           result.Score,
		Hour:            local.Hour(),
		Day:             local.Weekday().String(),
		Observations:    result.Profile.Observations,
		AvgTaskDuration: result.Profile.AvgTaskDuration,
		CompletionRate:  result.Profile.CompletionRate,
		Attempts:        result.Attempts,
	}, nil
}

func (i *Interactor) GetOptimalSchedule(ctx context.Context, input dto.ScheduleInput) (dto.ScheduleOutput, error) {
	p, err := i.svc.Current(ctx, input.UserID)
	if err != nil {
		return dto.ScheduleOutput{}, err
	}
	schedule := domain.BuildSchedule(p, input.TopN)
	out := dto.ScheduleOutput{Recommendation: schedule.Recommendation, Observations: p.Observations}
	for _, h := range schedule.PeakHours {
		out.PeakHours = append(out.PeakHours, dto.HourSlot{Hour: h.Hour, Score: h.Score, Label: h.Label})
	}
	for _, d := range schedule.PeakDays {
		out.PeakDays = append(out.PeakDays, dto.DaySlot{Day: int(d.Day), Score: d.Score, Label: d.Label})
	}
	return out, nil
}

func (i *Interactor) PredictTaskDuration(ctx context.Context, input dto.PredictInput) (dto.PredictOutput, error) {
	p, err := i.svc.Current(ctx, input.UserID)
	if err != nil {
		return dto.PredictOutput{}, err
	}
	prediction, err := domain.PredictDuration(p, domain.PredictionRequest{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
	})
	if err != nil {
		return dto.PredictOutput{}, err
	}
	return dto.PredictOutput{
		EstimatedMinutes: prediction.EstimatedMinutes,
		BaseMinutes:      prediction.BaseMinutes,
		Confidence:       string(prediction.Confidence),
		Reasoning:        prediction.Reasoning,
	}, nil
}

func (i *Interactor) GetProfile(ctx context.Context, userID string) (dto.ProfileOutput, error) {
	p, err := i.svc.Get(ctx, userID)
	if err != nil {
		return dto.ProfileOutput{}, err
	}
	out := dto.ProfileOutput{
		ID:                p.ID,
		UserID:            p.UserID,
		PeakHours:         p.PeakHours,
		PeakDays:          p.PeakDays,
		AvgTaskDuration:   p.AvgTaskDuration,
		CompletionRate:    p.CompletionRate,
		Observations:      p.Observations,
		DurationSamples:   p.DurationSamples,
		CompletionSamples: p.CompletionSamples,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	for _, c := range p.TopCategories(len(p.CategoryPreferences)) {
		out.Categories = append(out.Categories, dto.CategoryScore{Category: c.Category, Score: c.Score})
	}
	return out, nil
}

func (i *Interactor) ResetProfile(ctx context.Context, userID string) error {
	if err := i.svc.Reset(ctx, userID); err != nil {
		return err
	}
	i.logger.Infof("profile reset for %s", userID)
	return nil
}
