package dto

import "time"

type StartInput struct {
	UserID         string
	TaskID         string
	Category       string
	Type           string
	IdempotencyKey string
}

type StopInput struct {
	UserID         string
	WasCompleted   bool
	WasInterrupted bool
}

type PauseInput struct {
	UserID   string
	PausedAt *time.Time
}

type ResumeInput struct {
	UserID         string
	PauseStartedAt *time.Time
	PauseEndedAt   *time.Time
}

type SwitchInput struct {
	UserID         string
	NewTaskID      string
	Category       string
	Type           string
	SplitReason    string
	WasCompleted   bool
	IdempotencyKey string
}

type PauseOutput struct {
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

type SessionOutput struct {
	ID                string
	UserID            string
	TaskID            string
	Category          string
	Type              string
	State             string
	StartedAt         time.Time
	EndedAt           *time.Time
	Duration          time.Duration
	ActiveDuration    time.Duration
	WasCompleted      bool
	WasInterrupted    bool
	PauseCount        int
	TotalPauseTime    time.Duration
	Pauses            []PauseOutput
	CurrentPauseStart *time.Time
	ParentSessionID   string
	SplitReason       string
	Learned           bool
	Replayed          bool
	JournalPath       string
}

type SwitchOutput struct {
	OldSession SessionOutput
	NewSession SessionOutput
	Replayed   bool
}

type ListInput struct {
	UserID    string
	TaskID    string
	Type      string
	Completed *bool
	From      time.Time
	To        time.Time
	Cursor    string
	Limit     int
}

type SessionPageOutput struct {
	Sessions   []SessionOutput
	NextCursor string
}

type StatsInput struct {
	UserID string
	From   time.Time
	To     time.Time
}

type StatsOutput struct {
	UserID              string
	From                time.Time
	To                  time.Time
	TotalSessions       int
	CompletedSessions   int
	InterruptedSessions int
	TotalTime           time.Duration
	WorkTime            time.Duration
	BreakTime           time.Duration
	PauseTime           time.Duration
	TotalPauses         int
	AverageSession      time.Duration
	CompletionRate      float64
}

type TaskStatsOutput struct {
	TaskID            string
	Sessions          int
	CompletedSessions int
	TotalTime         time.Duration
	AverageSession    time.Duration
	FirstStartedAt    *time.Time
	LastEndedAt       *time.Time
}

type LearnPendingOutput struct {
	Learned int
	Skipped int
	Failed  int
}
