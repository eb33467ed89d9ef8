package in

import (
	"context"

	"tempo/internal/modules/profile/dto"
)

type Usecase interface {
	LearnFromSession(ctx context.Context, input dto.LearnInput) (dto.LearnOutput, error)
	GetOptimalSchedule(ctx context.Context, input dto.ScheduleInput) (dto.ScheduleOutput, error)
	PredictTaskDuration(ctx context.Context, input dto.PredictInput) (dto.PredictOutput, error)
	GetProfile(ctx context.Context, userID string) (dto.ProfileOutput, error)
	ResetProfile(ctx context.Context, userID string) error
}
