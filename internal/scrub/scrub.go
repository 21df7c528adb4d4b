// Package scrub redacts likely-sensitive substrings from outgoing text. The
// patterns are deliberately narrow; this is a best-effort filter.
package scrub

import "regexp"

const (
	PaymentMarker = "[REDACTED_PAYMENT]"
	EmailMarker   = "[REDACTED_EMAIL]"
	SecretMarker  = "[REDACTED_SECRET]"
)

// Markers contain no digits and no '@' so a later rule, or a second pass,
// cannot match already redacted text.
var rules = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`), PaymentMarker},
	{regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w{2,4}\b`), EmailMarker},
	{regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`), "password: " + SecretMarker},
}

// Text applies the payment, email and password rules in that order.
func Text(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllLiteralString(text, r.replacement)
	}
	return text
}
