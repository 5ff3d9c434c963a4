package mailbox

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func msgAt(id string, ts time.Time) Message {
	return Message{ID: id, ThreadID: "T1", From: "a@example.com", Timestamp: ts}
}

func TestThreadAddKeepsChronologicalOrder(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	th := NewThread("T1")

	// Insert out of order.
	th.Add(msgAt("m2", base.Add(2*time.Minute)))
	th.Add(msgAt("m1", base))
	th.Add(msgAt("m3", base.Add(5*time.Minute)))

	var got []string
	for _, m := range th.Messages {
		got = append(got, m.ID)
	}
	want := []string{"m1", "m2", "m3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("message order mismatch (-want +got):\n%s", diff)
	}
}

func TestThreadAddReplacesByID(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	th := NewThread("T1")
	th.Add(msgAt("m1", base))
	th.Add(msgAt("m2", base.Add(time.Minute)))

	updated := msgAt("m1", base)
	updated.Snippet = "refetched"
	th.Add(updated)

	if th.Len() != 2 {
		t.Fatalf("expected 2 messages after replace, got %d", th.Len())
	}
	if th.Messages[0].Snippet != "refetched" {
		t.Errorf("expected replace-by-id to update snapshot, got %q", th.Messages[0].Snippet)
	}
	// Replace must not reorder.
	if th.Messages[0].ID != "m1" || th.Messages[1].ID != "m2" {
		t.Errorf("replace reordered messages: %v, %v", th.Messages[0].ID, th.Messages[1].ID)
	}
}

func TestThreadTracksParticipants(t *testing.T) {
	th := NewThread("T1")
	msg := msgAt("m1", time.Now())
	msg.To = []string{"b@example.com"}
	th.Add(msg)

	for _, addr := range []string{"a@example.com", "b@example.com"} {
		if _, ok := th.Participants[addr]; !ok {
			t.Errorf("expected participant %s", addr)
		}
	}
}

func TestThreadSnapshotIsCopy(t *testing.T) {
	th := NewThread("T1")
	th.Add(msgAt("m1", time.Now()))

	snap := th.Snapshot()
	snap[0].Subject = "mutated"

	if th.Messages[0].Subject == "mutated" {
		t.Error("snapshot mutation leaked into thread")
	}
}
