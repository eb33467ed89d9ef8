package in

import (
	"context"
	"time"

	timerdto "tempo/internal/modules/timer/dto"
	timerin "tempo/internal/modules/timer/port/in"
)

// CLIHandler binds terminal commands to one configured user.
type CLIHandler struct {
	usecase timerin.Usecase
	userID  string
}

func NewCLIHandler(usecase timerin.Usecase, userID string) CLIHandler {
	return CLIHandler{usecase: usecase, userID: userID}
}

func (h CLIHandler) Start(ctx context.Context, taskID, category, sessionType, key string) (timerdto.SessionOutput, error) {
	return h.usecase.StartTimer(ctx, timerdto.StartInput{UserID: h.userID, TaskID: taskID, Category: category, Type: sessionType, IdempotencyKey: key})
}

func (h CLIHandler) Stop(ctx context.Context, completed, interrupted bool) (timerdto.SessionOutput, error) {
	return h.usecase.StopTimer(ctx, timerdto.StopInput{UserID: h.userID, WasCompleted: completed, WasInterrupted: interrupted})
}

func (h CLIHandler) Pause(ctx context.Context) (timerdto.SessionOutput, error) {
	return h.usecase.PauseTimer(ctx, timerdto.PauseInput{UserID: h.userID})
}

func (h CLIHandler) Resume(ctx context.Context) (timerdto.SessionOutput, error) {
	return h.usecase.ResumeTimer(ctx, timerdto.ResumeInput{UserID: h.userID})
}

func (h CLIHandler) Switch(ctx context.Context, taskID, category, sessionType, reason string, completed bool, key string) (timerdto.SwitchOutput, error) {
	return h.usecase.SwitchTask(ctx, timerdto.SwitchInput{
		UserID:         h.userID,
		NewTaskID:      taskID,
		Category:       category,
		Type:           sessionType,
		SplitReason:    reason,
		WasCompleted:   completed,
		IdempotencyKey: key,
	})
}

func (h CLIHandler) Status(ctx context.Context) (timerdto.SessionOutput, error) {
	return h.usecase.GetActive(ctx, h.userID)
}

func (h CLIHandler) List(ctx context.Context, taskID, sessionType string, completed *bool, from, to time.Time, cursor string, limit int) (timerdto.SessionPageOutput, error) {
	return h.usecase.ListSessions(ctx, timerdto.ListInput{
		UserID:    h.userID,
		TaskID:    taskID,
		Type:      sessionType,
		Completed: completed,
		From:      from,
		To:        to,
		Cursor:    cursor,
		Limit:     limit,
	})
}

func (h CLIHandler) Stats(ctx context.Context, from, to time.Time) (timerdto.StatsOutput, error) {
	return h.usecase.GetStats(ctx, timerdto.StatsInput{UserID: h.userID, From: from, To: to})
}

func (h CLIHandler) TaskStats(ctx context.Context, taskID string) (timerdto.TaskStatsOutput, error) {
	return h.usecase.GetTaskTimeStats(ctx, h.userID, taskID)
}

func (h CLIHandler) LearnPending(ctx context.Context) (timerdto.LearnPendingOutput, error) {
	return h.usecase.LearnPending(ctx, h.userID)
}
