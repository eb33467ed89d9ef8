package dto

import "time"

// LearnInput is the terminal session snapshot handed over by the timer module.
type LearnInput struct {
	SessionID      string
	UserID         string
	Type           string
	Category       string
	StartedAt      time.Time
	EndedAt        *time.Time
	Duration       time.Duration
	TotalPauseTime time.Duration
	WasCompleted   bool
	WasInterrupted bool
	Learned        bool
}

type LearnOutput struct {
	UserID          string
	SessionID       string
	Score           float64
	Hour            int
	Day             string
	Observations    int
	AvgTaskDuration float64
	CompletionRate  float64
	Attempts        int
}

type ScheduleInput struct {
	UserID string
	TopN   int
}

type HourSlot struct {
	Hour  int
	Score float64
	Label string
}

type DaySlot struct {
	Day   int
	Score float64
	Label string
}

type ScheduleOutput struct {
	PeakHours      []HourSlot
	PeakDays       []DaySlot
	Recommendation string
	Observations   int
}

type PredictInput struct {
	UserID      string
	Title       string
	Description string
	Category    string
	Priority    string
}

type PredictOutput struct {
	EstimatedMinutes int
	BaseMinutes      float64
	Confidence       string
	Reasoning        []string
}

type CategoryScore struct {
	Category string
	Score    float64
}

type ProfileOutput struct {
	ID                string
	UserID            string
	PeakHours         [24]float64
	PeakDays          [7]float64
	AvgTaskDuration   float64
	CompletionRate    float64
	Categories        []CategoryScore
	Observations      int
	DurationSamples   int
	CompletionSamples int
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
