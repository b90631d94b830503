package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	redactionTokenRe = regexp.MustCompile(`\[[a-z]+\]`)
	storeNumberRe    = regexp.MustCompile(`#\s*\d+`)
	trailingDigitsRe = regexp.MustCompile(`\s+\d+$`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// NormalizeDescription reduces a transaction description to its merchant
// key form: lowercase, redaction tokens and store numbers removed,
// whitespace collapsed. "STARBUCKS #4821" and "starbucks  #9910" both
// normalize to "starbucks". The same normalization feeds the category
// cache key and the dedup fingerprint, so it must stay deterministic.
func NormalizeDescription(desc string) string {
	s := strings.ToLower(desc)
	s = redactionTokenRe.ReplaceAllString(s, " ")
	s = storeNumberRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingDigitsRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Fingerprint returns a stable digest identifying this record as a
// real-world event: two records with the same date, normalized description,
// amount, and account agree regardless of which statement produced them.
// Never displayed; used only for duplicate detection.
func (r *TransactionRecord) Fingerprint() string {
	basis := strings.Join([]string{
		r.Date.Format("2006-01-02"),
		NormalizeDescription(r.Description),
		r.Amount.StringFixed(2),
		r.AccountLast4,
	}, "|")
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}
