package logging_test

import (
	"strings"
	"testing"

	"github.com/qashgo/backend/internal/logging"
)

func TestSanitizeForLog(t *testing.T) {
	if got := logging.SanitizeForLog("short", 32); got != "short" {
		t.Errorf("short input changed: %q", got)
	}

	long := strings.Repeat("a", 100)
	got := logging.SanitizeForLog(long, 32)
	if !strings.HasPrefix(got, strings.Repeat("a", 32)) || !strings.HasSuffix(got, "...[truncated]") {
		t.Errorf("long input not truncated: %q", got)
	}
}
