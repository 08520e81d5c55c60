package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yehezkielgunawan/shortin-v3/internal/database"
	"github.com/yehezkielgunawan/shortin-v3/internal/models"
	"github.com/yehezkielgunawan/shortin-v3/internal/shortcode"
)

// Short-code generation strategies.
const (
	// StrategyRandom draws random candidates until one is free.
	StrategyRandom = "random"
	// StrategyHash derives the code from the URL and falls back to
	// random candidates when the derived code is taken.
	StrategyHash = "hash"
)

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL into the repository.
	// Returns the created URL model, or database.ErrShortCodeExists
	// when the short code is already taken.
	Create(ctx context.Context, shortCode, originalURL string) (*models.URL, error)

	// GetByShortCode retrieves a URL by its short code and increments
	// its access count.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// Update modifies the original URL for a given short code.
	Update(ctx context.Context, shortCode, originalURL string) (*models.URL, error)

	// Delete removes a URL by its short code.
	Delete(ctx context.Context, shortCode string) error

	// GetStats retrieves a URL by its short code without changing it.
	GetStats(ctx context.Context, shortCode string) (*models.URL, error)

	// List returns every live URL record.
	List(ctx context.Context) ([]*models.URL, error)
}

// URLService provides methods to manage URL shortening operations.
// The service uses a URLRepository interface to interact with the underlying storage backend.
type URLService struct {
	repo     URLRepository
	gen      *shortcode.Generator
	strategy string
}

// NewURLService creates a new instance of URLService with the provided repository, generator and strategy.
func NewURLService(repo URLRepository, gen *shortcode.Generator, strategy string) *URLService {
	return &URLService{
		repo:     repo,
		gen:      gen,
		strategy: strategy,
	}
}

// ShortenURL stores originalURL under a short code and returns the created record.
// A non-empty customCode is used as is and database.ErrShortCodeExists
// surfaces when it is taken. Otherwise a code is generated per the
// configured strategy, with candidate uniqueness checked against the
// repository; the repository then performs its own duplicate check on
// create. The two guards are independent on purpose.
func (s *URLService) ShortenURL(ctx context.Context, originalURL, customCode string) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	shortCode := customCode
	if shortCode == "" {
		var err error
		shortCode, err = s.generateCode(ctx, originalURL)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}
	}

	url, err := s.repo.Create(ctx, shortCode, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	return url, nil
}

func (s *URLService) generateCode(ctx context.Context, originalURL string) (string, error) {
	exists := func(ctx context.Context, code string) (bool, error) {
		_, err := s.repo.GetStats(ctx, code)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	if s.strategy == StrategyHash {
		return s.gen.Hybrid(ctx, originalURL, exists)
	}
	return s.gen.Unique(ctx, exists)
}

// ResolveShortCode retrieves the original URL associated with the provided short code,
// incrementing its access count.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

// ModifyURL updates the original URL associated with a given short code.
func (s *URLService) ModifyURL(ctx context.Context, shortCode, originalURL string) (*models.URL, error) {
	const op = "service.URLService.ModifyURL"

	url, err := s.repo.Update(ctx, shortCode, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	return url, nil
}

// DeactivateURL deletes the URL associated with the provided short code.
func (s *URLService) DeactivateURL(ctx context.Context, shortCode string) error {
	const op = "service.URLService.DeactivateURL"

	if err := s.repo.Delete(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	return nil
}

// GetURLStats retrieves the statistics for the URL associated with the provided short code.
func (s *URLService) GetURLStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLStats"

	url, err := s.repo.GetStats(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// ListURLs returns every stored URL record.
func (s *URLService) ListURLs(ctx context.Context) ([]*models.URL, error) {
	const op = "service.URLService.ListURLs"

	urls, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}
