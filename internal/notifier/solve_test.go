package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAnnounceSolveOrdinalTemplates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ordinal int
		user    string
		want    string
	}{
		{name: "first blood", ordinal: 1, user: "bob", want: "🩸 First Blood! ⚡️\nbob solved pwn1"},
		{name: "second solve", ordinal: 2, user: "carol", want: "carol solved pwn1 (2)"},
		{name: "third solve", ordinal: 3, user: "alice", want: "alice solved pwn1 (3)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			svc := newService(enabledSnapshot(), sender, fakeCounter{n: tt.ordinal}, nil)
			svc.AnnounceSolve(context.Background(), solveEvent(tt.user))
			if got := sender.last(t).Msg.Text; got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnnounceSolveDisabledFlag(t *testing.T) {
	t.Parallel()
	snap := enabledSnapshot()
	snap.SolveEnabled = false
	sender := &fakeSender{}
	svc := newService(snap, sender, fakeCounter{n: 1}, nil)

	svc.AnnounceSolve(context.Background(), solveEvent("alice"))
	if sender.count() != 0 {
		t.Fatal("sent despite solve notifications disabled")
	}
}

func TestAnnounceSolveLimit(t *testing.T) {
	t.Parallel()
	snap := enabledSnapshot()
	snap.SolveLimit = 3

	for ordinal, want := range map[int]int{1: 1, 2: 1, 3: 1, 4: 0, 10: 0} {
		sender := &fakeSender{}
		svc := newService(snap, sender, fakeCounter{n: ordinal}, nil)
		svc.AnnounceSolve(context.Background(), solveEvent("alice"))
		if sender.count() != want {
			t.Fatalf("ordinal %d with limit 3: sent %d, want %d", ordinal, sender.count(), want)
		}
	}
}

func TestAnnounceSolveCountErrorSkips(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc := newService(enabledSnapshot(), sender, fakeCounter{err: errors.New("db locked")}, nil)

	// Count failure is a skip, never a panic or a send.
	svc.AnnounceSolve(context.Background(), solveEvent("alice"))
	if sender.count() != 0 {
		t.Fatal("sent despite count failure")
	}
}

func TestAnnounceSolveZeroCountClampedToFirstBlood(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	// A racing read may miss the just-committed row; never announce below 1.
	svc := newService(enabledSnapshot(), sender, fakeCounter{n: 0}, nil)

	svc.AnnounceSolve(context.Background(), solveEvent("bob"))
	if got := sender.last(t).Msg.Text; !strings.Contains(got, "First Blood") {
		t.Fatalf("message = %q, want first blood", got)
	}
}

func TestAnnounceSolveMalformedTemplateFallsBack(t *testing.T) {
	t.Parallel()
	snap := enabledSnapshot()
	snap.SolveTemplate = "{user} solved {challenge} ({count})" // unknown placeholder
	sender := &fakeSender{}
	svc := newService(snap, sender, fakeCounter{n: 5}, nil)

	svc.AnnounceSolve(context.Background(), solveEvent("dave"))
	if got := sender.last(t).Msg.Text; got != "dave solved pwn1 (5)" {
		t.Fatalf("fallback message = %q", got)
	}
}

func TestAnnounceSolveAppendsChallengeLink(t *testing.T) {
	t.Parallel()
	snap := enabledSnapshot()
	snap.BaseURL = "https://ctf.example.org"
	snap.SolveThreadID = 9
	sender := &fakeSender{}
	svc := newService(snap, sender, fakeCounter{n: 2}, nil)

	svc.AnnounceSolve(context.Background(), solveEvent("alice"))

	got := sender.last(t)
	if !strings.HasSuffix(got.Msg.Text, "\n\nhttps://ctf.example.org/challenges#pwn1-7") {
		t.Fatalf("message missing challenge link: %q", got.Msg.Text)
	}
	if got.Msg.ThreadID != 9 {
		t.Fatalf("thread id = %d, want 9", got.Msg.ThreadID)
	}
}
