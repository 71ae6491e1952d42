package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatLine(t *testing.T) {
	valid := false
	ev := BookingEvent{
		Type: EventCancelled, SlotID: "s1", FieldID: "f1", UserID: "u1",
		TeamName: "Leões", Category: "Sub-20", Date: "2026-05-01", Time: "20:00",
		Status: "available", Fee: 30, Valid: &valid,
		At: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	want := `[2026-05-01T12:00:00Z] booking.cancelled | slot_id=s1 | field_id=f1 | user_id=u1 | team="Leões" | category="Sub-20" | when=2026-05-01 20:00 | status=available | fee=30.00 | receipt_valid=false` + "\n"
	if got := FormatLine(ev); got != want {
		t.Fatalf("line =\n%s\nwant\n%s", got, want)
	}
}

func TestHandleMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	for _, typ := range []string{EventRequested, EventConfirmed} {
		body, _ := json.Marshal(BookingEvent{Type: typ, SlotID: "s1", At: time.Now()})
		if err := HandleMessage(body, path); err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], EventRequested) || !strings.Contains(lines[1], EventConfirmed) {
		t.Fatalf("unexpected log:\n%s", b)
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.log")
	if err := HandleMessage([]byte("not json"), path); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := HandleMessage([]byte(`{"type":""}`), path); err == nil {
		t.Fatal("expected error for empty event")
	}
}
