package scrub_test

import (
	"strings"
	"testing"

	"github.com/xaenox/vaaniii/internal/scrub"
)

func TestText_RedactsAllThree(t *testing.T) {
	in := "card 4111 1111 1111 1111 email a@b.com password: hunter2"
	got := scrub.Text(in)

	for _, marker := range []string{scrub.PaymentMarker, scrub.EmailMarker, scrub.SecretMarker} {
		if !strings.Contains(got, marker) {
			t.Fatalf("output %q missing %s", got, marker)
		}
	}
	for _, secret := range []string{"4111", "a@b.com", "hunter2"} {
		if strings.Contains(got, secret) {
			t.Fatalf("output %q still contains %q", got, secret)
		}
	}
	want := "card [REDACTED_PAYMENT] email [REDACTED_EMAIL] password: [REDACTED_SECRET]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestText_Cases(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"dashed card", "pay 4111-1111-1111-1111 now", "pay [REDACTED_PAYMENT] now"},
		{"compact card", "4111111111111111", "[REDACTED_PAYMENT]"},
		{"too many digits", "12345678901234567890", "12345678901234567890"},
		{"dotted email", "mail john.doe@mail.example.org", "mail [REDACTED_EMAIL]"},
		{"password equals", "PASSWORD=abc123 ok", "password: [REDACTED_SECRET] ok"},
		{"password spaced", "password :  s3cr3t", "password: [REDACTED_SECRET]"},
		{"nothing", "just talk about the moon", "just talk about the moon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scrub.Text(tt.in); got != tt.want {
				t.Fatalf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestText_FixedPoint(t *testing.T) {
	inputs := []string{
		"",
		"card 4111 1111 1111 1111 email a@b.com password: hunter2",
		"password: a@b.com",
		"1234 1234 1234 1234a@b.com",
		"1111 1111 1111 1111 5555 x@y.io",
		"a@b.compassword=x",
		"password=password=password",
		"[REDACTED_PAYMENT] [REDACTED_EMAIL] password: [REDACTED_SECRET]",
		"mixed 4111-1111-1111-1111,me@host.net;Password:pw",
	}
	for _, in := range inputs {
		once := scrub.Text(in)
		if twice := scrub.Text(once); twice != once {
			t.Fatalf("not a fixed point for %q: %q -> %q", in, once, twice)
		}
	}
}
