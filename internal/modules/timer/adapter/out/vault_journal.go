package out

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tempo/internal/modules/timer/domain"
	timerout "tempo/internal/modules/timer/port/out"
	"tempo/internal/platform/markdown"
	"tempo/internal/platform/slug"
)

const (
	journalSchemaVersion = 1
	journalBlockStart    = "<!-- tempo:pauses:start -->"
	journalBlockEnd      = "<!-- tempo:pauses:end -->"
	journalTimeLayout    = "2006-01-02T15:04:05Z07:00"
)

// VaultJournal writes one markdown note per finished session. Rewriting an existing note only
// touches the frontmatter and the generated pause block so hand-written notes survive.
type VaultJournal struct {
	dir string
}

var _ timerout.Journal = (*VaultJournal)(nil)

func NewVaultJournal(dir string) *VaultJournal {
	return &VaultJournal{dir: dir}
}

func (j *VaultJournal) Write(_ context.Context, session domain.Session) (string, error) {
	if session.EndedAt == nil {
		return "", fmt.Errorf("journal session %s: still active", session.ID)
	}
	date := session.StartedAt
	dir := filepath.Join(j.dir, "sessions", date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, journalFileName(session))

	meta := map[string]any{
		"schema_version":   journalSchemaVersion,
		"id":               session.ID,
		"user_id":          session.UserID,
		"task_id":          session.TaskID,
		"category":         session.Category,
		"type":             string(session.Type),
		"state":            string(session.State()),
		"started_at":       session.StartedAt.Format(journalTimeLayout),
		"ended_at":         session.EndedAt.Format(journalTimeLayout),
		"duration_minutes": int(session.Duration.Minutes()),
		"pause_count":      session.PauseCount,
		"pause_minutes":    int(session.TotalPauseTime.Minutes()),
		"completed":        session.WasCompleted,
		"interrupted":      session.WasInterrupted,
	}
	if session.ParentSessionID != "" {
		meta["parent_session_id"] = session.ParentSessionID
	}
	if session.SplitReason != "" {
		meta["split_reason"] = session.SplitReason
	}

	doc := markdown.Document{
		Meta: meta,
		Body: fmt.Sprintf("# %s\n\n- Type: %s\n- Duration: %d minutes\n\n## Notes\n\n", journalTitle(session), session.Type, int(session.Duration.Minutes())),
	}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		prior, parseErr := markdown.Parse(string(existing))
		if parseErr != nil {
			return "", fmt.Errorf("read journal note: %w", parseErr)
		}
		doc.Body = prior.Body
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read journal note: %w", err)
	}
	doc.Body = markdown.ReplaceManagedBlock(doc.Body, journalBlockStart, journalBlockEnd, renderPauses(session))

	rendered, err := doc.Render()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write journal note: %w", err)
	}
	return path, nil
}

func journalFileName(s domain.Session) string {
	short := s.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%s.md", s.StartedAt.Format("150405"), slug.Make(journalTitle(s)), short)
}

func journalTitle(s domain.Session) string {
	if s.TaskID != "" {
		return s.TaskID
	}
	return strings.ToLower(string(s.Type))
}

func renderPauses(s domain.Session) string {
	if len(s.Pauses) == 0 {
		return "No pauses."
	}
	lines := make([]string, 0, len(s.Pauses))
	for _, p := range s.Pauses {
		lines = append(lines, fmt.Sprintf("- %s to %s (%s)", p.StartedAt.Format("15:04:05"), p.EndedAt.Format("15:04:05"), p.Duration.Round(1e9)))
	}
	return strings.Join(lines, "\n")
}
