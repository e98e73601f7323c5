package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLogSinkRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithRequestID(context.Background(), "req-123")
	err := LogSink{Logger: logger}.Record(ctx, Event{
		ActorUserID: "user-42",
		EventType:   "access.test",
		Severity:    SeverityMedium,
		RiskScore:   50,
		EventData:   map[string]any{"foo": "bar"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "access.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["severity"] != "medium" {
		t.Fatalf("unexpected severity: %v", entry["severity"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor_user_id"] != "user-42" {
		t.Fatalf("unexpected actor: %v", entry["actor_user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogSinkRequiresEventType(t *testing.T) {
	var buf bytes.Buffer
	err := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}.Record(context.Background(), Event{EventType: "  "})
	if err == nil {
		t.Fatal("expected error for empty event type")
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

type captureAppender struct {
	events []Event
	err    error
}

func (c *captureAppender) AppendAuditEvent(_ context.Context, evt Event) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, evt)
	return nil
}

func TestStoreSinkFillsDefaults(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	app := &captureAppender{}
	sink := StoreSink{Store: app, Now: func() time.Time { return fixed }}

	data := map[string]any{"token": "abc"}
	if err := sink.Record(context.Background(), Event{EventType: "invitation.created", EventData: data}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	data["token"] = "mutated"

	if len(app.events) != 1 {
		t.Fatalf("expected one event, got %d", len(app.events))
	}
	got := app.events[0]
	if got.ID == "" {
		t.Fatal("expected generated id")
	}
	if !got.OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected timestamp %v", got.OccurredAt)
	}
	if got.Severity != SeverityLow {
		t.Fatalf("expected default severity low, got %s", got.Severity)
	}
	if got.EventData["token"] != "abc" {
		t.Fatalf("event data must be copied, got %v", got.EventData["token"])
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &captureAppender{}
	failing := &captureAppender{err: boom}

	err := Multi(StoreSink{Store: ok}, nil, StoreSink{Store: failing}).Record(context.Background(), Event{EventType: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if len(ok.events) != 1 {
		t.Fatalf("healthy sink must still receive the event")
	}
}
