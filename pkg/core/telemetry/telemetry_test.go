package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/y437li/infounit/pkg/core/llm"
)

func TestEventLogsStableName(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Event(logger, slog.LevelWarn, "curation_failed_using_fallback", "article_url", "https://example.com/a")

	out := buf.String()
	if !strings.Contains(out, "curation_failed_using_fallback") {
		t.Errorf("expected event name in log output, got %q", out)
	}
	if !strings.Contains(out, "article_url=https://example.com/a") {
		t.Errorf("expected attribute in log output, got %q", out)
	}
}

// TestRecordNeverBlocksOnFullQueue exercises Record's drop-oldest behavior
// directly against the channel, without starting the persisting goroutine
// (which would need a live pool).
func TestRecordNeverBlocksOnFullQueue(t *testing.T) {
	r := &Recorder{queue: make(chan llm.CallRecord, 1)}

	done := make(chan struct{})
	go func() {
		r.Record(llm.CallRecord{Purpose: "first"})
		r.Record(llm.CallRecord{Purpose: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	select {
	case rec := <-r.queue:
		if rec.Purpose != "second" {
			t.Errorf("expected the newest record to survive, got %q", rec.Purpose)
		}
	default:
		t.Fatal("expected one record left in the queue")
	}
}
