// Package parse extracts transaction records from statement text. Each bank
// format registers its own parser; dispatch is by format tag. A line that
// matches no known pattern is a diagnostic, never a fatal error. One
// malformed line must not abort the rest of the document.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when no parser is registered for a
	// statement's format tag.
	ErrUnsupportedFormat = errors.New("unsupported statement format")

	// ErrParseYieldedNothing is returned when a non-empty document produced
	// zero transactions. Surfaced instead of silently succeeding because it
	// usually signals a layout regression.
	ErrParseYieldedNothing = errors.New("statement yielded no transactions")
)

// Diagnostics counts non-fatal oddities observed while parsing one document.
type Diagnostics struct {
	UnparsedLines int // transaction-shaped lines that matched no pattern
	OutOfPeriod   int // lines whose date fell outside the statement period
}

// Parser converts one statement's raw text into transaction records in
// document order.
type Parser interface {
	Format() string
	Parse(stmt domain.RawStatement) ([]domain.TransactionRecord, Diagnostics, error)
}

// Registry holds parsers keyed by format tag.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for a format tag.
func (r *Registry) Get(format string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(format)]
	return p, ok
}

// Formats lists the registered format tags.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// Parse dispatches a statement to its format parser and enforces the
// zero-yield check: a non-empty document that produces no transactions
// fails with ErrParseYieldedNothing.
func (r *Registry) Parse(stmt domain.RawStatement) ([]domain.TransactionRecord, Diagnostics, error) {
	p, ok := r.Get(stmt.Format)
	if !ok {
		return nil, Diagnostics{}, fmt.Errorf("parse %q: format %q: %w", stmt.SourceID, stmt.Format, ErrUnsupportedFormat)
	}

	records, diags, err := p.Parse(stmt)
	if err != nil {
		return nil, diags, fmt.Errorf("parse %q: %w", stmt.SourceID, err)
	}

	if len(records) == 0 && strings.TrimSpace(stmt.Text) != "" {
		return nil, diags, fmt.Errorf("parse %q: %w", stmt.SourceID, ErrParseYieldedNothing)
	}

	return records, diags, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseCreditParser{})
	r.Register(&ChaseCheckingParser{})
	return r
}

// Account numbers appear in statement headers in a handful of shapes; we
// only ever keep the last four digits.
var accountLast4Res = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:account|acct|card)[\s#:]*(?:number)?[\s:]*[\dxX*\s-]*(\d{4})\b`),
	regexp.MustCompile(`[xX*]{8,}(\d{4})\b`),
	regexp.MustCompile(`(?i)ending\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)last\s*4[\s:]+(\d{4})`),
	regexp.MustCompile(`(?i)account[^\d]*(\d{4})\s`),
}

// extractAccountLast4 pulls the last four digits of the account number from
// statement header text, or "" when none of the known shapes match.
func extractAccountLast4(text string) string {
	for _, re := range accountLast4Res {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// statementMonthYear locates the statement date in the text using the given
// patterns (each must capture month, day, year). Falls back to the
// statement period end, then to now. Transaction lines carry no year, so
// some anchor is always needed.
func statementMonthYear(stmt domain.RawStatement, res ...*regexp.Regexp) (month, year int) {
	for _, re := range res {
		if m := re.FindStringSubmatch(stmt.Text); m != nil {
			mo, _ := strconv.Atoi(m[1])
			yr, _ := strconv.Atoi(m[3])
			if yr < 100 {
				yr += 2000
			}
			return mo, yr
		}
	}
	if !stmt.PeriodEnd.IsZero() {
		return int(stmt.PeriodEnd.Month()), stmt.PeriodEnd.Year()
	}
	now := time.Now()
	return int(now.Month()), now.Year()
}

// inferYear resolves a month/day with no year against the statement month:
// a transaction month after the statement month belongs to the prior year
// (statements span a year boundary in January).
func inferYear(month, stmtMonth, stmtYear int) int {
	if month > stmtMonth {
		return stmtYear - 1
	}
	return stmtYear
}

// withinPeriod reports whether a date falls inside the statement period
// with one day of tolerance on each side, for timezone/posting-date skew.
// Unknown periods accept everything.
func withinPeriod(stmt domain.RawStatement, date time.Time) bool {
	if stmt.PeriodStart.IsZero() || stmt.PeriodEnd.IsZero() {
		return true
	}
	const tolerance = 24 * time.Hour
	return !date.Before(stmt.PeriodStart.Add(-tolerance)) && !date.After(stmt.PeriodEnd.Add(tolerance))
}

// validDate rejects impossible calendar dates like 02/30: time.Date
// normalizes them instead of failing, so compare the round trip.
func validDate(year, month, day int) (time.Time, bool) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func containsAny(upper string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
