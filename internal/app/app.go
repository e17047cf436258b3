// Package app turns a Config into the concrete search provider, HTTP client
// and storage backends used by the entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/FranksOps/jobsweep/internal/config"
	"github.com/FranksOps/jobsweep/internal/fingerprint"
	"github.com/FranksOps/jobsweep/internal/invoke"
	"github.com/FranksOps/jobsweep/internal/serp"
	"github.com/FranksOps/jobsweep/internal/storage"
	"github.com/FranksOps/jobsweep/internal/storage/csvbackend"
	"github.com/FranksOps/jobsweep/internal/storage/jsonbackend"
	"github.com/FranksOps/jobsweep/internal/storage/postgres"
	"github.com/FranksOps/jobsweep/internal/storage/s3backend"
	"github.com/FranksOps/jobsweep/internal/storage/sqlite"
	"github.com/FranksOps/jobsweep/pkg/httpclient"
	"github.com/FranksOps/jobsweep/pkg/proxy"
	"github.com/FranksOps/jobsweep/pkg/useragent"
)

// NewHandler wires a sweep handler for cfg.
func NewHandler(cfg *config.Config, logger *slog.Logger) *invoke.Handler {
	return &invoke.Handler{
		Config:      cfg,
		Logger:      logger,
		NewProvider: NewProvider,
		OpenBackend: OpenBackend,
	}
}

// NewHTTPClient builds the outbound client with the configured TLS
// fingerprint.
func NewHTTPClient(cfg *config.Config) (*httpclient.Client, error) {
	profile, err := fingerprint.ParseProfile(cfg.HTTP.Fingerprint)
	if err != nil {
		return nil, err
	}
	transport, err := fingerprint.Transport(profile, proxy.FromRequest)
	if err != nil {
		return nil, err
	}
	return httpclient.New(httpclient.Config{
		Timeout:      cfg.HTTP.Timeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		UserAgent:    cfg.HTTP.UserAgent,
		Transport:    transport,
	})
}

// NewProvider builds the configured search provider. With a proxy list
// configured, searches rotate through it.
func NewProvider(cfg *config.Config) (serp.Provider, error) {
	client, err := NewHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	rotation, err := useragent.ParseRotation(cfg.Search.UARotation)
	if err != nil {
		return nil, err
	}
	provider, err := serp.New(serp.Config{
		Provider:   cfg.Search.Provider,
		APIKey:     cfg.Search.APIKey,
		Endpoint:   cfg.Search.Endpoint,
		Engine:     cfg.Search.Engine,
		UserAgents: cfg.Search.UserAgents,
		UARotation: rotation,
	}, client)
	if err != nil {
		return nil, err
	}

	if cfg.HTTP.ProxyFile == "" {
		return provider, nil
	}
	pool := proxy.NewPool(proxy.Config{
		MaxFailures: cfg.HTTP.ProxyMaxFailures,
		Cooldown:    cfg.HTTP.ProxyCooldown,
	})
	if err := pool.LoadFile(cfg.HTTP.ProxyFile); err != nil {
		return nil, err
	}
	return serp.NewProxied(provider, pool), nil
}

// OpenBackend opens every configured sink. Several sinks are combined with
// storage.Multi so a run writes to all of them; the s3 sink is the primary and
// is written last.
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	var backends []storage.Backend
	for _, name := range primaryFirst(cfg.Storage.Sinks) {
		b, err := openSink(ctx, cfg, name)
		if err != nil {
			for _, opened := range backends {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open %s sink: %w", name, err)
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, errors.New("no storage sinks configured")
	}
	return storage.Multi(backends...), nil
}

// primaryFirst moves the s3 sink to the front, keeping the others in order.
func primaryFirst(sinks []string) []string {
	out := make([]string, 0, len(sinks))
	for _, s := range sinks {
		if s == config.SinkS3 {
			out = append(out, s)
		}
	}
	for _, s := range sinks {
		if s != config.SinkS3 {
			out = append(out, s)
		}
	}
	return out
}

func openSink(ctx context.Context, cfg *config.Config, name string) (storage.Backend, error) {
	switch name {
	case config.SinkS3:
		return s3backend.New(ctx, s3backend.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return openQueryable(ctx, cfg, name)
	}
}

// Archive is a backend that can read its findings back.
type Archive interface {
	storage.Backend
	storage.Querier
}

// OpenArchive opens an existing queryable sink by name for reading. A local
// archive that has never been written is an error rather than an empty
// result. S3 is write-only.
func OpenArchive(ctx context.Context, cfg *config.Config, name string) (Archive, error) {
	var path string
	switch name {
	case config.SinkFile, config.SinkCSV:
		path = cfg.Storage.Dir
	case config.SinkSQLite:
		path = cfg.Storage.SQLitePath
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("no %s archive at %s", name, path)
			}
			return nil, fmt.Errorf("%s archive: %w", name, err)
		}
	}
	return openQueryable(ctx, cfg, name)
}

func openQueryable(ctx context.Context, cfg *config.Config, name string) (Archive, error) {
	switch name {
	case config.SinkFile:
		return jsonbackend.New(cfg.Storage.Dir)
	case config.SinkCSV:
		return csvbackend.New(cfg.Storage.Dir)
	case config.SinkSQLite:
		return sqlite.New(cfg.Storage.SQLitePath)
	case config.SinkPostgres:
		return postgres.New(ctx, cfg.Storage.PostgresDSN)
	case config.SinkS3:
		return nil, fmt.Errorf("the %s sink cannot be queried", name)
	default:
		return nil, fmt.Errorf("unknown storage sink %q", name)
	}
}
