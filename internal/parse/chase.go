package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

var (
	stmtDateRe = regexp.MustCompile(`(?i)Statement\s*Date[:\s]+(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	throughRe  = regexp.MustCompile(`(?i)through\s+(\d{1,2})/(\d{1,2})/(\d{2,4})`)
)

// ChaseCreditParser parses Chase credit card statement text. Transaction
// lines look like "03/14 STARBUCKS #123 5.75": date, description, unsigned
// amount. Charges are expenses; payment/refund keywords mark credits.
type ChaseCreditParser struct{}

var (
	creditLineRe = regexp.MustCompile(`^(\d{2}/\d{2})\s+(.+?)\s+([\d,]+\.\d{2})\s*$`)

	creditSkipKeywords = []string{
		"TOTAL FEES", "TOTAL INTEREST", "BALANCE SUBJECT",
		"PAGE", "STATEMENT DATE", "BILLING PERIOD",
	}
	creditCreditKeywords = []string{
		"PAYMENT", "RETURN", "REFUND", "CREDIT", "REVERSAL", "CASHBACK",
	}
)

// Format returns the parser's format tag.
func (p *ChaseCreditParser) Format() string { return "chase-credit" }

// Parse extracts transactions in document order.
func (p *ChaseCreditParser) Parse(stmt domain.RawStatement) ([]domain.TransactionRecord, Diagnostics, error) {
	last4 := extractAccountLast4(stmt.Text)
	stmtMonth, stmtYear := statementMonthYear(stmt, stmtDateRe)

	var records []domain.TransactionRecord
	var diags Diagnostics

	for i, line := range strings.Split(stmt.Text, "\n") {
		line = strings.TrimSpace(line)

		m := creditLineRe.FindStringSubmatch(line)
		if m == nil {
			if looksTransactional(line) {
				diags.UnparsedLines++
			}
			continue
		}

		desc := m[2]
		upper := strings.ToUpper(desc)
		if containsAny(upper, creditSkipKeywords) {
			continue
		}

		month, day := splitMonthDay(m[1])
		date, ok := validDate(inferYear(month, stmtMonth, stmtYear), month, day)
		if !ok {
			diags.UnparsedLines++
			continue
		}
		if !withinPeriod(stmt, date) {
			diags.OutOfPeriod++
			continue
		}

		amount, err := parseAmount(m[3])
		if err != nil {
			diags.UnparsedLines++
			continue
		}

		isCredit := containsAny(upper, creditCreditKeywords)
		if isCredit {
			amount = amount.Abs()
		} else {
			amount = amount.Abs().Neg()
		}

		records = append(records, domain.TransactionRecord{
			Date:         date,
			Description:  desc,
			Amount:       amount,
			Type:         creditTransactionType(upper, isCredit),
			SourceID:     stmt.SourceID,
			AccountLast4: last4,
			Line:         i + 1,
		})
	}

	return records, diags, nil
}

func creditTransactionType(upper string, isCredit bool) domain.TransactionType {
	switch {
	case strings.Contains(upper, "PAYMENT"):
		return domain.TypePayment
	case strings.Contains(upper, "FEE"):
		return domain.TypeFee
	case isCredit:
		return domain.TypeCredit
	default:
		return domain.TypePurchase
	}
}

// ChaseCheckingParser parses Chase checking statement text. Amounts carry
// an explicit sign, and lines may end with a running balance column that is
// discarded.
type ChaseCheckingParser struct{}

var (
	checkingLineRes = []*regexp.Regexp{
		// With trailing balance column.
		regexp.MustCompile(`^(\d{2}/\d{2})\s+(.+?)\s+(-?[\d,]+\.\d{2})\s+[\d,]+\.\d{2}\s*$`),
		// Without balance.
		regexp.MustCompile(`^(\d{2}/\d{2})\s+(.+?)\s+(-?[\d,]+\.\d{2})\s*$`),
	}

	checkingSkipKeywords = []string{
		"BEGINNING BALANCE", "ENDING BALANCE", "TOTAL", "DATE DESCRIPTION",
	}
)

// Format returns the parser's format tag.
func (p *ChaseCheckingParser) Format() string { return "chase-checking" }

// Parse extracts transactions in document order.
func (p *ChaseCheckingParser) Parse(stmt domain.RawStatement) ([]domain.TransactionRecord, Diagnostics, error) {
	last4 := extractAccountLast4(stmt.Text)
	stmtMonth, stmtYear := statementMonthYear(stmt, throughRe, stmtDateRe)

	var records []domain.TransactionRecord
	var diags Diagnostics

	for i, line := range strings.Split(stmt.Text, "\n") {
		line = strings.TrimSpace(line)

		if containsAny(strings.ToUpper(line), checkingSkipKeywords) {
			continue
		}

		var m []string
		for _, re := range checkingLineRes {
			if m = re.FindStringSubmatch(line); m != nil {
				break
			}
		}
		if m == nil {
			if looksTransactional(line) {
				diags.UnparsedLines++
			}
			continue
		}

		month, day := splitMonthDay(m[1])
		date, ok := validDate(inferYear(month, stmtMonth, stmtYear), month, day)
		if !ok {
			diags.UnparsedLines++
			continue
		}
		if !withinPeriod(stmt, date) {
			diags.OutOfPeriod++
			continue
		}

		amount, err := parseAmount(m[3])
		if err != nil {
			diags.UnparsedLines++
			continue
		}

		desc := m[2]
		records = append(records, domain.TransactionRecord{
			Date:         date,
			Description:  desc,
			Amount:       amount,
			Type:         checkingTransactionType(strings.ToUpper(desc), amount),
			SourceID:     stmt.SourceID,
			AccountLast4: last4,
			Line:         i + 1,
		})
	}

	return records, diags, nil
}

func checkingTransactionType(upper string, amount decimal.Decimal) domain.TransactionType {
	switch {
	case strings.Contains(upper, "TRANSFER"):
		return domain.TypeTransfer
	case strings.Contains(upper, "FEE"):
		return domain.TypeFee
	case strings.Contains(upper, "PAYMENT"):
		return domain.TypePayment
	case amount.IsPositive():
		return domain.TypeCredit
	default:
		return domain.TypePurchase
	}
}

var leadingDateRe = regexp.MustCompile(`^\d{2}/\d{2}\s`)

// looksTransactional guesses whether a non-matching line was meant to be a
// transaction (starts with MM/DD) so diagnostics don't count headers and
// footers as unparsed.
func looksTransactional(line string) bool {
	return leadingDateRe.MatchString(line)
}

func splitMonthDay(md string) (month, day int) {
	parts := strings.SplitN(md, "/", 2)
	month, _ = strconv.Atoi(parts[0])
	day, _ = strconv.Atoi(parts[1])
	return month, day
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}
