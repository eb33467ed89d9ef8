package logging_test

import (
	"testing"

	"tempo/internal/platform/logging"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	if _, err := logging.New("production", "loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	l, err := logging.New("development", "debug")
	if err != nil {
		t.Fatalf("development logger: %v", err)
	}
	l.With("user_id", "u1").Debugf("ready")
}
