package parse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

const chaseCreditFixture = `CHASE CREDIT CARD STATEMENT
Account Number: XXXX XXXX XXXX 4821
Statement Date: 04/05/2024

03/14 STARBUCKS #4821 SEATTLE WA 5.75
03/15 WHOLE FOODS MARKET 10019 84.12
03/18 garbage line that starts wrong
03/20 PAYMENT THANK YOU 250.00
03/21 ANNUAL MEMBERSHIP FEE 95.00
12/30 LATE DECEMBER CHARGE 10.00
TOTAL FEES FOR THIS PERIOD 95.00
Page 1 of 3
`

func TestChaseCreditParse(t *testing.T) {
	p := &ChaseCreditParser{}

	records, diags, err := p.Parse(domain.RawStatement{
		SourceID: "credit-2024-04.txt",
		Format:   "chase-credit",
		Text:     chaseCreditFixture,
	})
	require.NoError(t, err)
	require.Len(t, records, 5)

	t.Run("charges are negative", func(t *testing.T) {
		starbucks := records[0]
		assert.Equal(t, "STARBUCKS #4821 SEATTLE WA", starbucks.Description)
		assert.True(t, starbucks.Amount.Equal(decimal.RequireFromString("-5.75")))
		assert.Equal(t, domain.TypePurchase, starbucks.Type)
		assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), starbucks.Date)
	})

	t.Run("payments are positive", func(t *testing.T) {
		payment := records[2]
		assert.Equal(t, "PAYMENT THANK YOU", payment.Description)
		assert.True(t, payment.Amount.Equal(decimal.RequireFromString("250.00")))
		assert.Equal(t, domain.TypePayment, payment.Type)
	})

	t.Run("fees keep the fee type", func(t *testing.T) {
		fee := records[3]
		assert.Equal(t, domain.TypeFee, fee.Type)
		assert.True(t, fee.Amount.IsNegative())
	})

	t.Run("year inference across the boundary", func(t *testing.T) {
		december := records[4]
		assert.Equal(t, time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), december.Date)
	})

	t.Run("metadata", func(t *testing.T) {
		for _, rec := range records {
			assert.Equal(t, "credit-2024-04.txt", rec.SourceID)
			assert.Equal(t, "4821", rec.AccountLast4)
			assert.Greater(t, rec.Line, 0)
		}
	})

	t.Run("diagnostics count the malformed line only", func(t *testing.T) {
		assert.Equal(t, 1, diags.UnparsedLines)
		assert.Equal(t, 0, diags.OutOfPeriod)
	})
}

func TestChaseCreditOutOfPeriod(t *testing.T) {
	p := &ChaseCreditParser{}

	records, diags, err := p.Parse(domain.RawStatement{
		SourceID:    "credit.txt",
		Text:        "Statement Date: 04/05/2024\n03/14 COFFEE SHOP 5.75\n01/02 STALE CHARGE 9.99\n",
		PeriodStart: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "COFFEE SHOP", records[0].Description)
	assert.Equal(t, 1, diags.OutOfPeriod)
}

func TestChaseCreditPeriodTolerance(t *testing.T) {
	p := &ChaseCreditParser{}

	// Posting dates drift one day past the period; two days is out.
	records, diags, err := p.Parse(domain.RawStatement{
		SourceID:    "credit.txt",
		Text:        "Statement Date: 04/05/2024\n04/06 POSTED NEXT DAY 5.75\n04/07 TOO LATE 9.99\n",
		PeriodStart: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "POSTED NEXT DAY", records[0].Description)
	assert.Equal(t, time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, 1, diags.OutOfPeriod)
}

const chaseCheckingFixture = `CHASE TOTAL CHECKING
Account Number: 000001234567 8899
Beginning Balance $2,450.00 through 03/31/2024

03/02 DIRECT DEPOSIT PAYROLL ACME CORP 3,200.00 5,650.00
03/05 ONLINE TRANSFER TO SAVINGS -500.00 5,150.00
03/09 GROCERY OUTLET PORTLAND OR -64.33
03/12 MONTHLY SERVICE FEE -12.00 5,073.67
Ending Balance 5,073.67
`

func TestChaseCheckingParse(t *testing.T) {
	p := &ChaseCheckingParser{}

	records, diags, err := p.Parse(domain.RawStatement{
		SourceID: "checking-2024-03.txt",
		Format:   "chase-checking",
		Text:     chaseCheckingFixture,
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Zero(t, diags.UnparsedLines)

	t.Run("deposit keeps explicit sign and drops balance column", func(t *testing.T) {
		deposit := records[0]
		assert.Equal(t, "DIRECT DEPOSIT PAYROLL ACME CORP", deposit.Description)
		assert.True(t, deposit.Amount.Equal(decimal.RequireFromString("3200.00")))
		assert.Equal(t, domain.TypeCredit, deposit.Type)
		assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), deposit.Date)
	})

	t.Run("transfer type", func(t *testing.T) {
		transfer := records[1]
		assert.Equal(t, domain.TypeTransfer, transfer.Type)
		assert.True(t, transfer.Amount.Equal(decimal.RequireFromString("-500.00")))
	})

	t.Run("line without balance column", func(t *testing.T) {
		grocery := records[2]
		assert.Equal(t, "GROCERY OUTLET PORTLAND OR", grocery.Description)
		assert.True(t, grocery.Amount.Equal(decimal.RequireFromString("-64.33")))
		assert.Equal(t, domain.TypePurchase, grocery.Type)
	})

	t.Run("fee type", func(t *testing.T) {
		fee := records[3]
		assert.Equal(t, domain.TypeFee, fee.Type)
	})

	t.Run("account last four from header", func(t *testing.T) {
		assert.Equal(t, "8899", records[0].AccountLast4)
	})
}
