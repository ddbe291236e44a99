package email_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ErlanBelekov/quicksand/internal/email"
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSender struct {
	err  error
	sent []string
}

func (s *fakeSender) Send(_ context.Context, to, _, _ string) error {
	s.sent = append(s.sent, to)
	return s.err
}

func TestInviteMessage_EscapesAndLinks(t *testing.T) {
	m, err := email.InviteMessage("new@example.com", "<b>Ann</b>", "Bo", "https://q.test/api/auth/invite?token=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != email.KindInvite || m.To != "new@example.com" {
		t.Fatalf("unexpected message header: %+v", m)
	}
	if strings.Contains(m.HTML, "<b>Ann</b>") {
		t.Error("name was not escaped")
	}
	if !strings.Contains(m.HTML, "Bo invited you") {
		t.Error("inviter name missing")
	}
	if !strings.Contains(m.HTML, "token=abc") {
		t.Error("link missing")
	}
}

func TestInviteMessage_WithoutInviter(t *testing.T) {
	m, err := email.InviteMessage("new@example.com", "", "", "https://q.test/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(m.HTML, "You've been invited") && !strings.Contains(m.HTML, "You&#39;ve been invited") {
		t.Errorf("generic invite line missing: %s", m.HTML)
	}
}

func TestPasswordResetAndEmailChangeMessages(t *testing.T) {
	m, err := email.PasswordResetMessage("a@example.com", "ann", "https://q.test/reset")
	if err != nil || m.Kind != email.KindPasswordReset || !strings.Contains(m.HTML, "https://q.test/reset") {
		t.Fatalf("bad reset message: %+v, %v", m, err)
	}
	m, err = email.EmailChangeMessage("b@example.com", "ann", "https://q.test/verify")
	if err != nil || m.Kind != email.KindEmailChange || m.To != "b@example.com" {
		t.Fatalf("bad email change message: %+v, %v", m, err)
	}
}

func TestDeliver_CountsOutcomes(t *testing.T) {
	success := metrics.EmailsSentTotal.WithLabelValues("invite", "success")
	failure := metrics.EmailsSentTotal.WithLabelValues("invite", "failure")
	beforeOK, beforeFail := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	m, _ := email.InviteMessage("x@example.com", "", "", "https://q.test")
	if err := email.Deliver(context.Background(), &fakeSender{}, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sendErr := errors.New("provider down")
	if err := email.Deliver(context.Background(), &fakeSender{err: sendErr}, m); !errors.Is(err, sendErr) {
		t.Fatalf("want wrapped sendErr, got %v", err)
	}

	if got := testutil.ToFloat64(success) - beforeOK; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failure) - beforeFail; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}
