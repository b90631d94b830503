package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies what kind of financial event a record is.
type TransactionType string

const (
	TypePurchase TransactionType = "purchase"
	TypePayment  TransactionType = "payment"
	TypeCredit   TransactionType = "credit"
	TypeFee      TransactionType = "fee"
	TypeTransfer TransactionType = "transfer"
	TypeOther    TransactionType = "other"
)

// CategorySource records how a transaction's category was resolved.
type CategorySource string

const (
	// CategorySourceCache means the category came from the merchant cache.
	CategorySourceCache CategorySource = "cache"
	// CategorySourceOracle means the category was freshly assigned by the
	// external categorization service.
	CategorySourceOracle CategorySource = "oracle"
	// CategorySourceFallback means the oracle was unavailable or returned
	// garbage and the record was defaulted to "other".
	CategorySourceFallback CategorySource = "fallback"
)

// RawStatement is the extracted text of one uploaded statement document.
// Text extraction from the binary document happens upstream; the ingestion
// core only ever sees plain text.
type RawStatement struct {
	SourceID string // original filename or upload identifier
	Format   string // parser format tag, e.g. "chase-credit"
	Text     string

	// Optional statement period. Zero values mean unknown; when set,
	// parsed dates are validated against the period with one day of
	// tolerance for posting-date skew.
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// TransactionRecord is one normalized financial event.
//
// Amount is signed: negative for expenses, positive for income and credits.
// The sign convention is fixed at parse time by the format-specific parser.
type TransactionRecord struct {
	Date         time.Time // calendar date, no time component
	Description  string
	Amount       decimal.Decimal
	Type         TransactionType
	SourceID     string // statement the record came from
	AccountLast4 string // last four digits of the account, "" if unknown
	Line         int    // 1-based line number within the statement text

	Category       Category
	CategorySource CategorySource
}

// DocumentFailure describes why one document in an import batch failed.
type DocumentFailure struct {
	SourceID string `json:"source_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// ImportSummary is the result of one ingestion run. It is returned to the
// caller and never persisted.
type ImportSummary struct {
	Parsed              int `json:"parsed"`
	SanitizedChanged    int `json:"sanitized_changed"`
	NewlyCategorized    int `json:"newly_categorized"`
	CacheHitCategorized int `json:"cache_hit_categorized"`
	OracleFallbacks     int `json:"oracle_fallbacks"`
	DuplicatesSkipped   int `json:"duplicates_skipped"`
	Persisted           int `json:"persisted"`

	Failures []DocumentFailure `json:"failures,omitempty"`
}
