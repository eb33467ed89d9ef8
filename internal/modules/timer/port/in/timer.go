package in

import (
	"context"

	"tempo/internal/modules/timer/dto"
)

type Usecase interface {
	StartTimer(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error)
	StopTimer(ctx context.Context, input dto.StopInput) (dto.SessionOutput, error)
	PauseTimer(ctx context.Context, input dto.PauseInput) (dto.SessionOutput, error)
	ResumeTimer(ctx context.Context, input dto.ResumeInput) (dto.SessionOutput, error)
	SwitchTask(ctx context.Context, input dto.SwitchInput) (dto.SwitchOutput, error)
	GetActive(ctx context.Context, userID string) (dto.SessionOutput, error)
	ListSessions(ctx context.Context, input dto.ListInput) (dto.SessionPageOutput, error)
	GetStats(ctx context.Context, input dto.StatsInput) (dto.StatsOutput, error)
	GetTaskTimeStats(ctx context.Context, userID, taskID string) (dto.TaskStatsOutput, error)
	LearnPending(ctx context.Context, userID string) (dto.LearnPendingOutput, error)
}
