package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

// TransactionRow is the transactions table schema. Dates are civil dates
// (no time component) and amounts are NUMERIC.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	DocumentID    string `bigquery:"document_id"`    // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED, sanitized
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC

	NormalizedDescription string              `bigquery:"normalized_description"` // REQUIRED, merchant key
	TransactionType       string              `bigquery:"transaction_type"`       // REQUIRED
	AccountLast4          bigquery.NullString `bigquery:"account_last4"`          // NULLABLE

	Category       string              `bigquery:"category"`        // REQUIRED
	CategorySource bigquery.NullString `bigquery:"category_source"` // NULLABLE

	Fingerprint     string             `bigquery:"fingerprint"`       // REQUIRED
	SourceFile      string             `bigquery:"source_file"`       // REQUIRED
	StatementLineNo bigquery.NullInt64 `bigquery:"statement_line_no"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// MerchantCategoryRow is the merchant_categories cache table schema.
// merchant_key is unique; category is always a member of the closed set.
type MerchantCategoryRow struct {
	MerchantKey string    `bigquery:"merchant_key"`
	Category    string    `bigquery:"category"`
	UpdatedTS   time.Time `bigquery:"updated_ts"`
}

func rowFromRecord(documentID string, rec domain.TransactionRecord) *TransactionRow {
	row := &TransactionRow{
		TransactionID:         uuid.NewString(),
		DocumentID:            documentID,
		TransactionDate:       civil.DateOf(rec.Date),
		Description:           rec.Description,
		Amount:                rec.Amount.Rat(),
		NormalizedDescription: domain.NormalizeDescription(rec.Description),
		TransactionType:       string(rec.Type),
		Category:              string(rec.Category),
		Fingerprint:           rec.Fingerprint(),
		SourceFile:            rec.SourceID,
		CreatedTS:             time.Now(),
	}
	if rec.AccountLast4 != "" {
		row.AccountLast4 = bigquery.NullString{StringVal: rec.AccountLast4, Valid: true}
	}
	if rec.CategorySource != "" {
		row.CategorySource = bigquery.NullString{StringVal: string(rec.CategorySource), Valid: true}
	}
	if rec.Line > 0 {
		row.StatementLineNo = bigquery.NullInt64{Int64: int64(rec.Line), Valid: true}
	}
	return row
}

func recordFromRow(row *TransactionRow) domain.TransactionRecord {
	rec := domain.TransactionRecord{
		Date:        row.TransactionDate.In(time.UTC),
		Description: row.Description,
		Amount:      decimal.NewFromBigRat(row.Amount, 2),
		Type:        domain.TransactionType(row.TransactionType),
		SourceID:    row.SourceFile,
		Category:    domain.Category(row.Category),
	}
	if row.AccountLast4.Valid {
		rec.AccountLast4 = row.AccountLast4.StringVal
	}
	if row.CategorySource.Valid {
		rec.CategorySource = domain.CategorySource(row.CategorySource.StringVal)
	}
	if row.StatementLineNo.Valid {
		rec.Line = int(row.StatementLineNo.Int64)
	}
	return rec
}
