package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/yehezkielgunawan/shortin-v3/internal/database"
	"github.com/yehezkielgunawan/shortin-v3/internal/models"
)

type urlRecord struct {
	ID          string    `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	AccessCount int64     `db:"access_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		AccessCount: r.AccessCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// URLRepository stores shortened URLs in the urls table.
type URLRepository struct {
	db    *sqlx.DB
	newID func() (string, error)
}

// Option configures a URLRepository.
type Option func(*URLRepository)

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(r *URLRepository) {
		r.newID = newID
	}
}

// NewURLRepository returns a repository over db.
func NewURLRepository(db *sqlx.DB, opts ...Option) *URLRepository {
	r := &URLRepository{
		db:    db,
		newID: func() (string, error) { return gonanoid.New() },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Create inserts a new record. The unique index on short_code makes the
// duplicate check atomic, unlike the sheet backend's scan-then-append.
func (r *URLRepository) Create(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to generate record id: %w", op, err)
	}

	rec := new(urlRecord)
	query := `INSERT INTO urls(id, short_code, original_url)
		VALUES ($1, $2, $3)
		RETURNING *`

	err = r.db.GetContext(ctx, rec, query, id, shortCode, originalURL)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByShortCode resolves the record and increments its access count in
// one statement.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET access_count = access_count + 1, updated_at = now()
		WHERE short_code = $1
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// Update overwrites the destination URL.
func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Update"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET original_url = $1, updated_at = now()
		WHERE short_code = $2
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, originalURL, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// Delete removes the record. The short code becomes available again.
func (r *URLRepository) Delete(ctx context.Context, shortCode string) error {
	const op = "database.postgres.URLRepository.Delete"

	query := `DELETE FROM urls WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// GetStats resolves the record without touching its access count.
func (r *URLRepository) GetStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetStats"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// List returns every record, oldest first.
func (r *URLRepository) List(ctx context.Context) ([]*models.URL, error) {
	const op = "database.postgres.URLRepository.List"

	var recs []urlRecord
	query := `SELECT * FROM urls ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].ToURL())
	}

	return urls, nil
}
