package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yehezkielgunawan/shortin-v3/internal/config"
	"github.com/yehezkielgunawan/shortin-v3/internal/database/postgres"
	"github.com/yehezkielgunawan/shortin-v3/internal/database/sheet"
	"github.com/yehezkielgunawan/shortin-v3/internal/googleauth"
	"github.com/yehezkielgunawan/shortin-v3/internal/service"
	"github.com/yehezkielgunawan/shortin-v3/internal/sheets"
	"github.com/yehezkielgunawan/shortin-v3/internal/shortcode"

	myhttp "github.com/yehezkielgunawan/shortin-v3/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shortin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	urlRepo, err := setupRepository(ctx, cfg, g)
	if err != nil {
		return err
	}

	gen, err := setupGenerator(cfg)
	if err != nil {
		return err
	}

	urlSvc := service.NewURLService(urlRepo, gen, cfg.ShortCode.Strategy)

	logger := httplog.NewLogger("shortin", httplog.Options{
		JSON:            cfg.Env != config.EnvDev,
		LogLevel:        logLevel(cfg.Env),
		Concise:         cfg.Env == config.EnvDev,
		RequestHeaders:  true,
		SourceFieldName: "source",
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error occurred: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}

		return nil
	})

	return g.Wait()
}

// setupRepository wires the storage backend named by the config: the
// spreadsheet-backed store by default, or postgres when configured.
func setupRepository(ctx context.Context, cfg *config.Config, g *errgroup.Group) (service.URLRepository, error) {
	switch cfg.Storage {
	case config.StorageSheet:
		signer, err := googleauth.NewSigner(
			cfg.Google.ServiceAccountEmail,
			cfg.Google.PrivateKey,
			cfg.Google.TokenURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to setup credential signer: %w", err)
		}

		tokens := googleauth.NewTokenSource(signer,
			googleauth.WithTokenURL(cfg.Google.TokenURL),
		)

		client := sheets.New(cfg.Google.SpreadsheetID, tokens)

		return sheet.NewURLRepository(client, cfg.Google.SheetName), nil
	case config.StoragePostgres:
		db, err := postgres.New(cfg.Postgres.DSN(),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return db.Close()
		})

		if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return postgres.NewURLRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage)
	}
}

func setupGenerator(cfg *config.Config) (*shortcode.Generator, error) {
	var opts []shortcode.Option
	if cfg.ShortCode.Alphabet != "" {
		opts = append(opts, shortcode.WithAlphabet(cfg.ShortCode.Alphabet))
	}
	if cfg.ShortCode.Salt != "" {
		opts = append(opts, shortcode.WithSalt(cfg.ShortCode.Salt))
	}

	gen, err := shortcode.New(cfg.ShortCode.Length, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to setup short code generator: %w", err)
	}

	return gen, nil
}

func logLevel(env string) slog.Level {
	if env == config.EnvProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
