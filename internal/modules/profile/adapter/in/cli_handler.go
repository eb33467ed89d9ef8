package in

import (
	"context"

	profiledto "tempo/internal/modules/profile/dto"
	profilein "tempo/internal/modules/profile/port/in"
)

type CLIHandler struct {
	usecase profilein.Usecase
	userID  string
}

func NewCLIHandler(usecase profilein.Usecase, userID string) CLIHandler {
	return CLIHandler{usecase: usecase, userID: userID}
}

func (h CLIHandler) Schedule(ctx context.Context, topN int) (profiledto.ScheduleOutput, error) {
	return h.usecase.GetOptimalSchedule(ctx, profiledto.ScheduleInput{UserID: h.userID, TopN: topN})
}

func (h CLIHandler) Predict(ctx context.Context, title, description, category, priority string) (profiledto.PredictOutput, error) {
	return h.usecase.PredictTaskDuration(ctx, profiledto.PredictInput{
		UserID:      h.userID,
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    priority,
	})
}

func (h CLIHandler) Show(ctx context.Context) (profiledto.ProfileOutput, error) {
	return h.usecase.GetProfile(ctx, h.userID)
}

func (h CLIHandler) Reset(ctx context.Context) error {
	return h.usecase.ResetProfile(ctx, h.userID)
}
