// Package bigquery implements the persistence store on BigQuery: a
// transactions table with a fingerprint index surface and the
// merchant_categories cache table.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/store"
)

const (
	transactionsTable       = "transactions"
	merchantCategoriesTable = "merchant_categories"
)

// Store talks to one BigQuery dataset. It holds a shared client so each
// operation does not open a new connection.
type Store struct {
	client    *bigquery.Client
	datasetID string
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Store with its own BigQuery client.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return NewStoreWithClient(client, datasetID), nil
}

// NewStoreWithClient creates a Store around an existing client.
func NewStoreWithClient(client *bigquery.Client, datasetID string) *Store {
	return &Store{client: client, datasetID: datasetID}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// InsertTransactionBatch commits all of a document's records in a single
// inserter put: the batch is accepted or rejected as a unit.
func (s *Store) InsertTransactionBatch(ctx context.Context, documentID string, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, len(records))
	for i := range records {
		rows[i] = rowFromRecord(documentID, records[i])
	}

	inserter := s.client.Dataset(s.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactionBatch: inserting %d rows for %q: %w", len(rows), documentID, err)
	}
	return nil
}

// FingerprintExists reports whether a fingerprint is already persisted.
func (s *Store) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	existing, err := s.FingerprintsExist(ctx, []string{fingerprint})
	if err != nil {
		return false, err
	}
	return existing[fingerprint], nil
}

// FingerprintsExist checks a batch of fingerprints in one query. The result
// map has an entry for every requested fingerprint.
func (s *Store) FingerprintsExist(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	out := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		out[fp] = false
	}
	if len(fingerprints) == 0 {
		return out, nil
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT DISTINCT fingerprint
		FROM %s.%s
		WHERE fingerprint IN UNNEST(@fingerprints)
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "fingerprints", Value: fingerprints},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FingerprintsExist: query read: %w", err)
	}

	for {
		var r struct {
			Fingerprint string `bigquery:"fingerprint"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FingerprintsExist: iter next: %w", err)
		}
		out[r.Fingerprint] = true
	}
	return out, nil
}

// UpdateCategoryByFingerprint reclassifies already-committed rows.
func (s *Store) UpdateCategoryByFingerprint(ctx context.Context, fingerprint string, category domain.Category) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET category = @category
		WHERE fingerprint = @fingerprint
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category", Value: string(category)},
		{Name: "fingerprint", Value: fingerprint},
	}
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateCategoryByFingerprint: %w", err)
	}
	return nil
}

// QueryTransactions filters committed transactions by date range, category,
// and merchant key.
func (s *Store) QueryTransactions(ctx context.Context, f store.TransactionFilter) ([]domain.TransactionRecord, error) {
	sql := fmt.Sprintf(`
		SELECT
			transaction_id,
			document_id,
			transaction_date,
			description,
			amount,
			normalized_description,
			transaction_type,
			account_last4,
			category,
			category_source,
			fingerprint,
			source_file,
			statement_line_no,
			created_ts
		FROM %s.%s
		WHERE TRUE
	`, s.datasetID, transactionsTable)

	var params []bigquery.QueryParameter
	if !f.Start.IsZero() {
		sql += "\t\t  AND transaction_date >= @start_date\n"
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: civil.DateOf(f.Start)})
	}
	if !f.End.IsZero() {
		sql += "\t\t  AND transaction_date <= @end_date\n"
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: civil.DateOf(f.End)})
	}
	if f.Category != "" {
		sql += "\t\t  AND category = @category\n"
		params = append(params, bigquery.QueryParameter{Name: "category", Value: string(f.Category)})
	}
	if f.Merchant != "" {
		sql += "\t\t  AND normalized_description = @merchant\n"
		params = append(params, bigquery.QueryParameter{Name: "merchant", Value: f.Merchant})
	}
	sql += "\t\tORDER BY transaction_date, created_ts\n"
	if f.Limit > 0 {
		sql += fmt.Sprintf("\t\tLIMIT %d\n", f.Limit)
	}

	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var records []domain.TransactionRecord
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iter next: %w", err)
		}
		records = append(records, recordFromRow(&row))
	}
	return records, nil
}

// GetCategory looks up one merchant key in the cache table.
func (s *Store) GetCategory(ctx context.Context, merchantKey string) (domain.Category, bool, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT category
		FROM %s.%s
		WHERE merchant_key = @merchant_key
		LIMIT 1
	`, s.datasetID, merchantCategoriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "merchant_key", Value: merchantKey},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", false, fmt.Errorf("GetCategory: query read: %w", err)
	}

	var r struct {
		Category string `bigquery:"category"`
	}
	err = it.Next(&r)
	if err == iterator.Done {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("GetCategory: iter next: %w", err)
	}
	return domain.Category(r.Category), true, nil
}

// PutCategory upserts one cache entry; last write wins.
func (s *Store) PutCategory(ctx context.Context, merchantKey string, category domain.Category) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s.%s t
		USING (SELECT @merchant_key AS merchant_key, @category AS category) src
		ON t.merchant_key = src.merchant_key
		WHEN MATCHED THEN
			UPDATE SET category = src.category, updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
			INSERT (merchant_key, category, updated_ts)
			VALUES (src.merchant_key, src.category, CURRENT_TIMESTAMP())
	`, s.datasetID, merchantCategoriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "merchant_key", Value: merchantKey},
		{Name: "category", Value: string(category)},
	}
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("PutCategory: %w", err)
	}
	return nil
}

// ListCategories returns every cache entry ordered by merchant key.
func (s *Store) ListCategories(ctx context.Context) ([]store.CacheEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT merchant_key, category, updated_ts
		FROM %s.%s
		ORDER BY merchant_key
	`, s.datasetID, merchantCategoriesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var entries []store.CacheEntry
	for {
		var row MerchantCategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		entries = append(entries, store.CacheEntry{
			MerchantKey: row.MerchantKey,
			Category:    domain.Category(row.Category),
			UpdatedAt:   row.UpdatedTS,
		})
	}
	return entries, nil
}

// ClearCategories drops every cache entry.
func (s *Store) ClearCategories(ctx context.Context) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s WHERE TRUE
	`, s.datasetID, merchantCategoriesTable))
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("ClearCategories: %w", err)
	}
	return nil
}

// runDML runs a statement and waits for the job to finish.
func (s *Store) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
