package messaging

import "testing"

func TestEventSubject(t *testing.T) {
	if got := EventSubject("checked_in"); got != "roster.event.participant.checked_in" {
		t.Fatalf("unexpected subject %q", got)
	}
}
