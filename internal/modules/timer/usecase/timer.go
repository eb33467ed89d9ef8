package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	profiledto "tempo/internal/modules/profile/dto"
	profilein "tempo/internal/modules/profile/port/in"
	"tempo/internal/modules/timer/domain"
	"tempo/internal/modules/timer/dto"
	timerin "tempo/internal/modules/timer/port/in"
	timerout "tempo/internal/modules/timer/port/out"
	"tempo/internal/modules/timer/service"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/logging"
	"tempo/internal/platform/observability"
)

const DefaultPendingBatch = 50

type Options struct {
	PendingBatch int
}

type Interactor struct {
	svc     *service.TimerService
	learner profilein.Usecase
	events  timerout.EventPublisher
	journal timerout.Journal
	logger  logging.Logger
	batch   int
}

// NewInteractor wires the timer use cases. learner, events and journal are optional.
func NewInteractor(svc *service.TimerService, learner profilein.Usecase, events timerout.EventPublisher, journal timerout.Journal, logger logging.Logger, opts Options) timerin.Usecase {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.PendingBatch < 1 {
		opts.PendingBatch = DefaultPendingBatch
	}
	return &Interactor{svc: svc, learner: learner, events: events, journal: journal, logger: logger, batch: opts.PendingBatch}
}

func (i *Interactor) StartTimer(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error) {
	sessionType := domain.SessionTypeWork
	if input.Type != "" {
		parsed, err := domain.ParseSessionType(input.Type)
		if err != nil {
			return dto.SessionOutput{}, err
		}
		sessionType = parsed
	}
	session, replayed, err := i.svc.Start(ctx, service.StartParams{
		UserID:         input.UserID,
		TaskID:         input.TaskID,
		Category:       input.Category,
		Type:           sessionType,
		IdempotencyKey: input.IdempotencyKey,
	})
	observability.RecordTransition("start", err)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	out := i.toOutput(session)
	out.Replayed = replayed
	if !replayed {
		i.publish(ctx, domain.EventSessionStarted, session)
	}
	return out, nil
}

func (i *Interactor) PauseTimer(ctx context.Context, input dto.PauseInput) (dto.SessionOutput, error) {
	session, err := i.svc.Pause(ctx, input.UserID, input.PausedAt)
	observability.RecordTransition("pause", err)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	i.publish(ctx, domain.EventSessionPaused, session)
	return i.toOutput(session), nil
}

func (i *Interactor) ResumeTimer(ctx context.Context, input dto.ResumeInput) (dto.SessionOutput, error) {
	session, err := i.svc.Resume(ctx, input.UserID, input.PauseStartedAt, input.PauseEndedAt)
	observability.RecordTransition("resume", err)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	i.publish(ctx, domain.EventSessionResumed, session)
	return i.toOutput(session), nil
}

// StopTimer ends the active session. Learning, journaling and publishing run afterwards and
// never undo the stop.
func (i *Interactor) StopTimer(ctx context.Context, input dto.StopInput) (dto.SessionOutput, error) {
	session, err := i.svc.Stop(ctx, input.UserID, input.WasCompleted, input.WasInterrupted)
	observability.RecordTransition("stop", err)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	session = i.afterFinish(ctx, session)
	out := i.toOutput(session)
	out.JournalPath = i.writeJournal(ctx, session)
	i.publish(ctx, domain.EventSessionStopped, session)
	return out, nil
}

func (i *Interactor) SwitchTask(ctx context.Context, input dto.SwitchInput) (dto.SwitchOutput, error) {
	var sessionType domain.SessionType
	if input.Type != "" {
		parsed, err := domain.ParseSessionType(input.Type)
		if err != nil {
			return dto.SwitchOutput{}, err
		}
		sessionType = parsed
	}
	result, err := i.svc.Switch(ctx, service.SwitchParams{
		UserID:         input.UserID,
		NewTaskID:      input.NewTaskID,
		Category:       input.Category,
		Type:           sessionType,
		SplitReason:    input.SplitReason,
		WasCompleted:   input.WasCompleted,
		IdempotencyKey: input.IdempotencyKey,
	})
	observability.RecordTransition("switch", err)
	if err != nil {
		return dto.SwitchOutput{}, err
	}
	if result.Replayed {
		return dto.SwitchOutput{OldSession: i.toOutput(result.Old), NewSession: i.toOutput(result.New), Replayed: true}, nil
	}
	old := i.afterFinish(ctx, result.Old)
	out := dto.SwitchOutput{OldSession: i.toOutput(old), NewSession: i.toOutput(result.New)}
	out.OldSession.JournalPath = i.writeJournal(ctx, old)
	i.publish(ctx, domain.EventSessionSwitched, result.New)
	return out, nil
}

func (i *Interactor) GetActive(ctx context.Context, userID string) (dto.SessionOutput, error) {
	session, err := i.svc.Active(ctx, userID)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	return i.toOutput(session), nil
}

func (i *Interactor) ListSessions(ctx context.Context, input dto.ListInput) (dto.SessionPageOutput, error) {
	filter := domain.Filter{
		UserID:    input.UserID,
		TaskID:    input.TaskID,
		Completed: input.Completed,
		From:      input.From,
		To:        input.To,
	}
	if input.Type != "" {
		parsed, err := domain.ParseSessionType(input.Type)
		if err != nil {
			return dto.SessionPageOutput{}, err
		}
		filter.Type = parsed
	}
	page := domain.Page{Limit: input.Limit}
	if input.Cursor != "" {
		cursor, err := domain.DecodeCursor(input.Cursor)
		if err != nil {
			return dto.SessionPageOutput{}, err
		}
		page.Cursor = cursor
	}
	result, err := i.svc.List(ctx, filter, page)
	if err != nil {
		return dto.SessionPageOutput{}, err
	}
	out := dto.SessionPageOutput{Sessions: make([]dto.SessionOutput, 0, len(result.Sessions))}
	for _, s := range result.Sessions {
		out.Sessions = append(out.Sessions, i.toOutput(s))
	}
	out.NextCursor = domain.EncodeCursor(result.Next)
	return out, nil
}

func (i *Interactor) GetStats(ctx context.Context, input dto.StatsInput) (dto.StatsOutput, error) {
	to := input.To
	if to.IsZero() {
		to = i.svc.Now()
	}
	from := input.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	stats, err := i.svc.Stats(ctx, input.UserID, from, to)
	if err != nil {
		return dto.StatsOutput{}, err
	}
	return dto.StatsOutput{
		UserID:              input.UserID,
		From:                from,
		To:                  to,
		TotalSessions:       stats.TotalSessions,
		CompletedSessions:   stats.CompletedSessions,
		InterruptedSessions: stats.InterruptedSessions,
		TotalTime:           stats.TotalTime,
		WorkTime:            stats.WorkTime,
		BreakTime:           stats.BreakTime,
		PauseTime:           stats.PauseTime,
		TotalPauses:         stats.TotalPauses,
		AverageSession:      stats.AverageSession(),
		CompletionRate:      stats.CompletionRate(),
	}, nil
}

func (i *Interactor) GetTaskTimeStats(ctx context.Context, userID, taskID string) (dto.TaskStatsOutput, error) {
	stats, err := i.svc.TaskStats(ctx, userID, taskID)
	if err != nil {
		return dto.TaskStatsOutput{}, err
	}
	return dto.TaskStatsOutput{
		TaskID:            stats.TaskID,
		Sessions:          stats.Sessions,
		CompletedSessions: stats.CompletedSessions,
		TotalTime:         stats.TotalTime,
		AverageSession:    stats.AverageSession(),
		FirstStartedAt:    stats.FirstStartedAt,
		LastEndedAt:       stats.LastEndedAt,
	}, nil
}

// LearnPending feeds finished sessions that never reached the profile back into learning.
func (i *Interactor) LearnPending(ctx context.Context, userID string) (dto.LearnPendingOutput, error) {
	if i.learner == nil {
		return dto.LearnPendingOutput{}, fmt.Errorf("%w: learning is not configured", apperrors.ErrInvalidInput)
	}
	pending, err := i.svc.Unlearned(ctx, userID, i.batch)
	if err != nil {
		return dto.LearnPendingOutput{}, err
	}
	out := dto.LearnPendingOutput{}
	for _, session := range pending {
		_, err := i.learner.LearnFromSession(ctx, learnInput(session))
		switch {
		case err == nil:
			out.Learned++
		case errors.Is(err, apperrors.ErrAlreadyLearned):
			out.Skipped++
		default:
			out.Failed++
			i.logger.Warnf("learn pending session %s: %v", session.ID, err)
		}
	}
	return out, nil
}

// afterFinish hands a terminal session to learning. Failures only leave it unlearned.
func (i *Interactor) afterFinish(ctx context.Context, session domain.Session) domain.Session {
	observability.RecordTracked(string(session.Type), session.Duration)
	if i.learner == nil {
		return session
	}
	if _, err := i.learner.LearnFromSession(ctx, learnInput(session)); err != nil {
		i.logger.Warnf("learn from session %s: %v", session.ID, err)
		return session
	}
	if learned, err := session.MarkLearned(i.svc.Now()); err == nil {
		return learned
	}
	return session
}

func (i *Interactor) writeJournal(ctx context.Context, session domain.Session) string {
	if i.journal == nil {
		return ""
	}
	path, err := i.journal.Write(ctx, session)
	if err != nil {
		i.logger.Warnf("journal session %s: %v", session.ID, err)
		return ""
	}
	return path
}

func (i *Interactor) publish(ctx context.Context, eventType domain.EventType, session domain.Session) {
	if i.events == nil {
		return
	}
	event := domain.NewEvent(eventType, session, i.svc.Now())
	err := i.events.Publish(ctx, event)
	observability.RecordPublish(err)
	if err != nil {
		i.logger.Warnf("publish %s for session %s: %v", eventType, session.ID, err)
	}
}

func learnInput(s domain.Session) profiledto.LearnInput {
	return profiledto.LearnInput{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Type:           string(s.Type),
		Category:       s.Category,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		Duration:       s.Duration,
		TotalPauseTime: s.TotalPauseTime,
		WasCompleted:   s.WasCompleted,
		WasInterrupted: s.WasInterrupted,
		Learned:        s.IsLearned(),
	}
}

func (i *Interactor) toOutput(s domain.Session) dto.SessionOutput {
	return toOutput(s, i.svc.Now())
}

func toOutput(s domain.Session, now time.Time) dto.SessionOutput {
	out := dto.SessionOutput{
		ID:                s.ID,
		UserID:            s.UserID,
		TaskID:            s.TaskID,
		Category:          s.Category,
		Type:              string(s.Type),
		State:             string(s.State()),
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		Duration:          s.Duration,
		ActiveDuration:    s.ActiveDuration(now),
		WasCompleted:      s.WasCompleted,
		WasInterrupted:    s.WasInterrupted,
		PauseCount:        s.PauseCount,
		TotalPauseTime:    s.TotalPauseTime,
		CurrentPauseStart: s.CurrentPauseStart,
		ParentSessionID:   s.ParentSessionID,
		SplitReason:       s.SplitReason,
		Learned:           s.IsLearned(),
	}
	for _, p := range s.Pauses {
		out.Pauses = append(out.Pauses, dto.PauseOutput{StartedAt: p.StartedAt, EndedAt: p.EndedAt, Duration: p.Duration})
	}
	return out
}
