// Package sanitize strips sensitive numeric fragments from transaction
// descriptions before they are cached, sent to the categorization service,
// or persisted. Redaction is pattern based and operates on description text
// only; amounts and dates are never touched.
package sanitize

import (
	"regexp"
	"strings"
)

type rule struct {
	re    *regexp.Regexp
	token string
}

// Each matched fragment is replaced with a class-named token. Tokens contain
// no digits, which is what makes a second pass a no-op.
var rules = []rule{
	// Card numbers, full or referenced by their last four.
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "[CARD]"},
	{regexp.MustCompile(`(?i)\b(?:ending\s*(?:in)?|last\s*4|x{4,})\s*\d{4}\b`), "[CARD]"},
	{regexp.MustCompile(`(?i)\bcard\s+\d{4}\b`), "[CARD]"},

	// Account numbers (6+ digits after an account keyword).
	{regexp.MustCompile(`(?i)\b(?:acct?|account)\.?\s*#?\s*\d{6,}\b`), "[ACCOUNT]"},

	// Transaction / reference / confirmation / authorization codes.
	{regexp.MustCompile(`(?i)\b(?:trans(?:action)?|ref(?:erence)?|conf(?:irmation)?|trace|auth(?:orization)?)\s*#?\s*:?\s*[A-Z0-9]{6,}\b`), "[REF]"},

	// Check numbers.
	{regexp.MustCompile(`(?i)\b(?:check|chk|cheque)\s*#?\s*:?\s*\d{3,}\b`), "[CHECK]"},

	// Phone numbers.
	{regexp.MustCompile(`\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[PHONE]"},

	// Email addresses.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},

	// SSN-shaped digit groups.
	{regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`), "[SSN]"},

	// Any remaining long digit run (catches 12+ digit card/account numbers
	// that slipped past the shaped patterns above).
	{regexp.MustCompile(`\b\d{8,}\b`), "[ID]"},

	// Long digit runs embedded in other text lack the word boundary the
	// rule above needs. 12+ contiguous digits must never survive, wherever
	// they sit.
	{regexp.MustCompile(`\d{12,}`), "[ID]"},

	// Alphanumeric reference codes like AB123456 or 123XYZ45.
	{regexp.MustCompile(`\b[A-Z]{2,}[0-9]{6,}\b`), "[REF]"},
	{regexp.MustCompile(`\b[0-9]{3,}[A-Z]{2,}[0-9]{2,}\b`), "[REF]"},
}

var spaceRe = regexp.MustCompile(`\s+`)

// Sanitize redacts sensitive substrings in a transaction description and
// reports whether any redaction occurred. Whitespace is normalized either
// way without counting as a change. Empty input is valid and returned
// unchanged. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(desc string) (string, bool) {
	if desc == "" {
		return desc, false
	}

	out := desc
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.token)
	}
	// Compared before whitespace normalization: only rule hits count.
	redacted := out != desc

	out = spaceRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	out = collapseRepeatedTokens(out)

	return out, redacted
}

// collapseRepeatedTokens folds runs of the same redaction token into one,
// so "Card [CARD] [CARD]" reads "Card [CARD]". RE2 has no backreferences,
// hence the explicit scan.
func collapseRepeatedTokens(s string) string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		isToken := strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]")
		if isToken && len(out) > 0 && out[len(out)-1] == f {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
