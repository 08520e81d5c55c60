package sheet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yehezkielgunawan/shortin-v3/internal/database"
	"github.com/yehezkielgunawan/shortin-v3/internal/sheets"
)

func newTestRepository(t testing.TB) (*URLRepository, *fakeSheet) {
	t.Helper()

	fake := newFakeSheet()
	seq := 0
	repo := NewURLRepository(fake, "Sheet1",
		WithClock(func() time.Time {
			return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
		WithIDGenerator(func() (string, error) {
			seq++
			return fmt.Sprintf("id-%d", seq), nil
		}),
	)

	return repo, fake
}

func TestURLRepository_Create(t *testing.T) {
	t.Run("appends a new row", func(t *testing.T) {
		repo, fake := newTestRepository(t)

		url, err := repo.Create(context.Background(), "abc123", "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, "id-1", url.ID)
		assert.Equal(t, "abc123", url.ShortCode)
		assert.Equal(t, "https://example.com", url.OriginalURL)
		assert.Zero(t, url.AccessCount)
		assert.Equal(t, url.CreatedAt, url.UpdatedAt)

		assert.Equal(t, []string{
			"id-1", "https://example.com", "abc123",
			"2024-06-01T12:00:00Z", "2024-06-01T12:00:00Z", "0",
		}, fake.row(2))
	})

	t.Run("duplicate short code", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		_, err := repo.Create(context.Background(), "abc123", "https://example.com")
		require.NoError(t, err)

		url, err := repo.Create(context.Background(), "abc123", "https://example.org")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrShortCodeExists)
		assert.Nil(t, url)
	})

	t.Run("api error", func(t *testing.T) {
		repo, fake := newTestRepository(t)
		apiErr := &sheets.APIError{StatusCode: 500, Body: "boom"}
		fake.failOnce(apiErr)

		url, err := repo.Create(context.Background(), "abc123", "https://example.com")

		assert.Error(t, err)
		assert.ErrorIs(t, err, apiErr)
		assert.Nil(t, url)
	})
}

func TestURLRepository_GetByShortCode(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		url, err := repo.GetByShortCode(context.Background(), "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("increments on every resolve", func(t *testing.T) {
		repo, fake := newTestRepository(t)

		_, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
		require.NoError(t, err)

		for i := int64(1); i <= 3; i++ {
			url, err := repo.GetByShortCode(context.Background(), "abc123")

			require.NoError(t, err)
			assert.Equal(t, "https://example.com/a", url.OriginalURL)
			assert.Equal(t, i, url.AccessCount)
		}

		assert.Equal(t, "3", fake.row(2)[5])
	})
}

func TestURLRepository_Update(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		url, err := repo.Update(context.Background(), "missing", "https://example.org")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("rewrites url and updatedAt, preserves identity", func(t *testing.T) {
		repo, fake := newTestRepository(t)

		created, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
		require.NoError(t, err)

		updates := fake.updateCalls
		url, err := repo.Update(context.Background(), "abc123", "https://example.com/b")

		require.NoError(t, err)
		assert.Equal(t, created.ID, url.ID)
		assert.Equal(t, created.ShortCode, url.ShortCode)
		assert.Equal(t, created.CreatedAt, url.CreatedAt)
		assert.Equal(t, "https://example.com/b", url.OriginalURL)

		// the url cell and the updatedAt cell are written separately
		assert.Equal(t, updates+2, fake.updateCalls)
		assert.Equal(t, "https://example.com/b", fake.row(2)[1])
	})
}

func TestURLRepository_Delete(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		err := repo.Delete(context.Background(), "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
	})

	t.Run("clears the row in place", func(t *testing.T) {
		repo, fake := newTestRepository(t)

		_, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
		require.NoError(t, err)
		_, err = repo.Create(context.Background(), "def456", "https://example.com/b")
		require.NoError(t, err)

		require.NoError(t, repo.Delete(context.Background(), "abc123"))

		// the row survives as a gap; neighbors keep their positions
		assert.Equal(t, 3, fake.rowCount())
		assert.Equal(t, []string{"", "", "", "", "", ""}, fake.row(2))

		_, err = repo.GetStats(context.Background(), "abc123")
		assert.ErrorIs(t, err, database.ErrURLNotFound)

		url, err := repo.GetStats(context.Background(), "def456")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/b", url.OriginalURL)
	})

	t.Run("short code becomes reusable", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		first, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(context.Background(), "abc123"))

		second, err := repo.Create(context.Background(), "abc123", "https://example.com/b")

		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, "abc123", second.ShortCode)
		assert.Zero(t, second.AccessCount)
	})
}

func TestURLRepository_GetStats(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
	require.NoError(t, err)

	_, err = repo.GetByShortCode(context.Background(), "abc123")
	require.NoError(t, err)

	url, err := repo.GetStats(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), url.AccessCount)

	// stats reads must not bump the counter
	url, err = repo.GetStats(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), url.AccessCount)
}

func TestURLRepository_List(t *testing.T) {
	repo, fake := newTestRepository(t)

	_, err := repo.Create(context.Background(), "abc123", "https://example.com/a")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), "def456", "https://example.com/b")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), "ghi789", "https://example.com/c")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(context.Background(), "def456"))

	// a malformed row (no short code) must be dropped silently
	require.NoError(t, fake.AppendValues(context.Background(), "Sheet1!A:F",
		[][]string{{"id-x", "https://example.com/x", "", "", "", ""}}))

	urls, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "abc123", urls[0].ShortCode)
	assert.Equal(t, "ghi789", urls[1].ShortCode)
}

func TestURLRepository_ExampleScenario(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "abc123", "https://example.com/a")
	require.NoError(t, err)
	assert.Zero(t, created.AccessCount)

	for i := 0; i < 3; i++ {
		url, err := repo.GetByShortCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", url.OriginalURL)
	}

	stats, err := repo.GetStats(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.AccessCount)

	_, err = repo.Update(ctx, "abc123", "https://example.com/b")
	require.NoError(t, err)

	url, err := repo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", url.OriginalURL)

	require.NoError(t, repo.Delete(ctx, "abc123"))

	_, err = repo.GetStats(ctx, "abc123")
	assert.ErrorIs(t, err, database.ErrURLNotFound)
}
