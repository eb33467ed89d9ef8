package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "tempo/internal/platform/errors"
)

const (
	DefaultTopN            = 3
	DefaultDurationMinutes = 30.0
	MinEstimateMinutes     = 5
	estimateStepMinutes    = 5
	complexityMultiplier   = 1.5
	quickMultiplier        = 0.75
	preferredCategoryBoost = 0.9
	preferredCategoryScore = 0.7
)

var complexityKeywords = []string{
	"refactor", "migrate", "migration", "architecture", "design", "research", "investigate",
	"integrate", "integration", "implement", "complex", "optimize", "rewrite", "debug",
}

var quickKeywords = []string{
	"fix typo", "typo", "quick", "minor", "small", "tweak", "rename", "update docs", "bump",
}

var priorityMultipliers = map[string]float64{
	"urgent": 1.3,
	"high":   1.2,
	"medium": 1.0,
	"low":    0.9,
}

type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// SessionOutcome is the slice of a finished session that learning scores.
type SessionOutcome struct {
	Completed   bool
	Interrupted bool
	Elapsed     time.Duration
	PauseTime   time.Duration
}

// SessionScore rates a finished session in [0,1].
// Base 0.8 when completed, else 0.3; minus the pause ratio (capped at 0.3); minus 0.2 when interrupted.
func SessionScore(o SessionOutcome) float64 {
	score := 0.3
	if o.Completed {
		score = 0.8
	}
	if o.Elapsed > 0 && o.PauseTime > 0 {
		score -= math.Min(0.3, float64(o.PauseTime)/float64(o.Elapsed))
	}
	if o.Interrupted {
		score -= 0.2
	}
	return math.Max(0, math.Min(1, score))
}

type HourSlot struct {
	Hour  int
	Score float64
	Label string
}

type DaySlot struct {
	Day   time.Weekday
	Score float64
	Label string
}

type Schedule struct {
	PeakHours      []HourSlot
	PeakDays       []DaySlot
	Recommendation string
}

func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// BuildSchedule ranks the profile's hours and days. A non-positive topN means DefaultTopN.
func BuildSchedule(p Profile, topN int) Schedule {
	if topN <= 0 {
		topN = DefaultTopN
	}
	schedule := Schedule{}
	for _, h := range p.TopPeakHours(topN) {
		schedule.PeakHours = append(schedule.PeakHours, HourSlot{Hour: h.Hour, Score: h.Score, Label: HourLabel(h.Hour)})
	}
	for _, d := range p.TopPeakDays(topN) {
		schedule.PeakDays = append(schedule.PeakDays, DaySlot{Day: d.Day, Score: d.Score, Label: d.Day.String()})
	}
	schedule.Recommendation = recommendation(schedule)
	return schedule
}

func recommendation(s Schedule) string {
	if len(s.PeakHours) == 0 || s.PeakHours[0].Score == 0 {
		return "Not enough history yet. Track a few sessions to get a schedule recommendation."
	}
	hour := s.PeakHours[0]
	msg := fmt.Sprintf("Schedule deep work around %s", hour.Label)
	if len(s.PeakDays) > 0 && s.PeakDays[0].Score > 0 {
		msg += fmt.Sprintf(", especially on %s", s.PeakDays[0].Label)
	}
	return msg + fmt.Sprintf(" (productivity score %.0f%%).", hour.Score*100)
}

type PredictionRequest struct {
	Title       string
	Description string
	Category    string
	Priority    string
}

type Prediction struct {
	EstimatedMinutes int
	BaseMinutes      float64
	Confidence       Confidence
	Reasoning        []string
}

// PredictDuration estimates a task's length in minutes from the profile average.
func PredictDuration(p Profile, req PredictionRequest) (Prediction, error) {
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = "medium"
	}
	priorityFactor, ok := priorityMultipliers[priority]
	if !ok {
		return Prediction{}, fmt.Errorf("%w: unsupported priority %q", apperrors.ErrInvalidInput, req.Priority)
	}

	out := Prediction{Confidence: ConfidenceFor(p.DurationSamples)}
	base := p.AvgTaskDuration
	if p.DurationSamples == 0 || base <= 0 {
		base = DefaultDurationMinutes
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("no duration history, using default of %.0f minutes", base))
	} else {
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("average task duration is %.1f minutes over %d sessions", base, p.DurationSamples))
	}
	out.BaseMinutes = base
	estimate := base

	text := strings.ToLower(req.Title + " " + req.Description)
	if kw, hit := firstKeyword(text, complexityKeywords); hit {
		estimate *= complexityMultiplier
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("complexity keyword %q: x%.2f", kw, complexityMultiplier))
	} else if kw, hit := firstKeyword(text, quickKeywords); hit {
		estimate *= quickMultiplier
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("quick-task keyword %q: x%.2f", kw, quickMultiplier))
	}

	if priorityFactor != 1.0 {
		estimate *= priorityFactor
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("%s priority: x%.2f", priority, priorityFactor))
	}

	if category := strings.TrimSpace(req.Category); category != "" {
		if pref, seen := p.CategoryPreferences[category]; seen && pref >= preferredCategoryScore {
			estimate *= preferredCategoryBoost
			out.Reasoning = append(out.Reasoning, fmt.Sprintf("strong category %q (%.2f): x%.2f", category, pref, preferredCategoryBoost))
		}
	}

	rounded := int(math.Round(estimate/estimateStepMinutes)) * estimateStepMinutes
	if rounded < MinEstimateMinutes {
		rounded = MinEstimateMinutes
	}
	out.EstimatedMinutes = rounded
	return out, nil
}

func ConfidenceFor(samples int) Confidence {
	switch {
	case samples < 5:
		return ConfidenceLow
	case samples < 20:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func firstKeyword(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
