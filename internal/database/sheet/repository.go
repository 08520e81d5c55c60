// Package sheet implements the URL repository on top of a Google
// spreadsheet. One record occupies one row with the fixed column layout
// A=id, B=url, C=shortCode, D=createdAt, E=updatedAt, F=count; row 1 is
// a header. The spreadsheet offers no transactions and no indexes, so
// lookups are linear scans over the short-code column and every mutation
// is a scan-or-read followed by a separate write.
package sheet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/yehezkielgunawan/shortin-v3/internal/database"
	"github.com/yehezkielgunawan/shortin-v3/internal/models"
)

// firstDataRow is the first spreadsheet row that holds a record.
const firstDataRow = 2

// ValuesClient is the subset of the sheets client the repository needs.
type ValuesClient interface {
	GetValues(ctx context.Context, rng string) ([][]string, error)
	AppendValues(ctx context.Context, rng string, rows [][]string) error
	UpdateValues(ctx context.Context, rng string, rows [][]string) error
	ClearValues(ctx context.Context, rng string) error
}

// URLRepository stores shortened URLs in a single sheet of a spreadsheet.
type URLRepository struct {
	client ValuesClient
	sheet  string
	now    func() time.Time
	newID  func() (string, error)
}

// Option configures a URLRepository.
type Option func(*URLRepository)

// WithClock overrides the clock used for createdAt/updatedAt cells.
func WithClock(now func() time.Time) Option {
	return func(r *URLRepository) {
		r.now = now
	}
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(r *URLRepository) {
		r.newID = newID
	}
}

// NewURLRepository returns a repository over the named sheet.
func NewURLRepository(client ValuesClient, sheetName string, opts ...Option) *URLRepository {
	r := &URLRepository{
		client: client,
		sheet:  sheetName,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() (string, error) { return gonanoid.New() },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Create appends a new record after checking that no live row already
// holds shortCode. The check and the append are two separate API calls:
// two concurrent creates racing on the same code can both pass the check
// and both append. That window is inherent to the storage medium and is
// left as is.
func (r *URLRepository) Create(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "database.sheet.URLRepository.Create"

	codes, err := r.client.GetValues(ctx, r.codeColumnRange())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan short codes: %w", op, err)
	}
	for _, row := range codes {
		if len(row) > 0 && row[0] == shortCode {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}
	}

	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to generate record id: %w", op, err)
	}

	now := r.now()
	ts := now.Format(time.RFC3339)

	if err := r.client.AppendValues(ctx, r.dataRange(), [][]string{
		{id, originalURL, shortCode, ts, ts, "0"},
	}); err != nil {
		return nil, fmt.Errorf("%s: failed to append url record: %w", op, err)
	}

	return &models.URL{
		ID:          id,
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		AccessCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetByShortCode resolves the record and increments its access count,
// returning the record with the new count. The read and the count write
// are separate calls, so concurrent resolves can lose increments.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.sheet.URLRepository.GetByShortCode"

	rowNum, rec, err := r.lookup(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := r.now()
	rec.AccessCount++
	rec.UpdatedAt = now

	countRange := fmt.Sprintf("%s!E%d:F%d", r.sheet, rowNum, rowNum)
	if err := r.client.UpdateValues(ctx, countRange, [][]string{
		{now.Format(time.RFC3339), strconv.FormatInt(rec.AccessCount, 10)},
	}); err != nil {
		return nil, fmt.Errorf("%s: failed to write access count: %w", op, err)
	}

	return rec, nil
}

// Update overwrites the destination URL and then the updatedAt cell.
// The two writes are issued separately: a failure between them leaves
// the url updated with a stale updatedAt.
func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "database.sheet.URLRepository.Update"

	rowNum, rec, err := r.lookup(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	urlRange := fmt.Sprintf("%s!B%d", r.sheet, rowNum)
	if err := r.client.UpdateValues(ctx, urlRange, [][]string{{originalURL}}); err != nil {
		return nil, fmt.Errorf("%s: failed to write url: %w", op, err)
	}

	now := r.now()
	updatedAtRange := fmt.Sprintf("%s!E%d", r.sheet, rowNum)
	if err := r.client.UpdateValues(ctx, updatedAtRange, [][]string{{now.Format(time.RFC3339)}}); err != nil {
		return nil, fmt.Errorf("%s: failed to write updatedAt: %w", op, err)
	}

	rec.OriginalURL = originalURL
	rec.UpdatedAt = now

	return rec, nil
}

// Delete clears the record's six cells in place. The row keeps its
// number and is skipped by subsequent scans; the short code becomes
// available again.
func (r *URLRepository) Delete(ctx context.Context, shortCode string) error {
	const op = "database.sheet.URLRepository.Delete"

	rowNum, err := r.findRowNumber(ctx, shortCode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowRange := fmt.Sprintf("%s!A%d:F%d", r.sheet, rowNum, rowNum)
	if err := r.client.ClearValues(ctx, rowRange); err != nil {
		return fmt.Errorf("%s: failed to clear url record: %w", op, err)
	}

	return nil
}

// GetStats resolves the record without touching its access count.
func (r *URLRepository) GetStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.sheet.URLRepository.GetStats"

	_, rec, err := r.lookup(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// List reads the full data range and parses every live row. Tombstoned
// rows and rows missing id, url or shortCode are skipped.
func (r *URLRepository) List(ctx context.Context) ([]*models.URL, error) {
	const op = "database.sheet.URLRepository.List"

	rows, err := r.client.GetValues(ctx, r.dataRowsRange())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(rows))
	for _, row := range rows {
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		urls = append(urls, rec)
	}

	return urls, nil
}

// findRowNumber scans the short-code column for an exact match and
// returns the 1-based spreadsheet row number. The scan covers every row
// ever written, tombstones included; cost grows with sheet history.
func (r *URLRepository) findRowNumber(ctx context.Context, shortCode string) (int, error) {
	codes, err := r.client.GetValues(ctx, r.codeColumnRange())
	if err != nil {
		return 0, fmt.Errorf("failed to scan short codes: %w", err)
	}

	for i, row := range codes {
		if len(row) > 0 && row[0] == shortCode {
			return i + firstDataRow, nil
		}
	}

	return 0, database.ErrURLNotFound
}

func (r *URLRepository) lookup(ctx context.Context, shortCode string) (int, *models.URL, error) {
	rowNum, err := r.findRowNumber(ctx, shortCode)
	if err != nil {
		return 0, nil, err
	}

	rowRange := fmt.Sprintf("%s!A%d:F%d", r.sheet, rowNum, rowNum)
	rows, err := r.client.GetValues(ctx, rowRange)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read url record: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil, database.ErrURLNotFound
	}

	rec, ok := parseRow(rows[0])
	if !ok {
		return 0, nil, database.ErrURLNotFound
	}

	return rowNum, rec, nil
}

// parseRow maps a spreadsheet row onto a record. Rows missing id, url
// or shortCode are reported as not ok; timestamps and counts that fail
// to parse degrade to zero values instead of failing the row.
func parseRow(row []string) (*models.URL, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	rec := &models.URL{
		ID:          cell(0),
		OriginalURL: cell(1),
		ShortCode:   cell(2),
	}
	if rec.ID == "" || rec.OriginalURL == "" || rec.ShortCode == "" {
		return nil, false
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339, cell(3))
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, cell(4))
	rec.AccessCount, _ = strconv.ParseInt(cell(5), 10, 64)

	return rec, true
}

func (r *URLRepository) codeColumnRange() string {
	return fmt.Sprintf("%s!C%d:C", r.sheet, firstDataRow)
}

func (r *URLRepository) dataRowsRange() string {
	return fmt.Sprintf("%s!A%d:F", r.sheet, firstDataRow)
}

func (r *URLRepository) dataRange() string {
	return fmt.Sprintf("%s!A:F", r.sheet)
}
