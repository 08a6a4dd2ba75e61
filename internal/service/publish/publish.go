// Package publish copies the merged dataset to remote object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"phish-merge/internal/config"
	"phish-merge/internal/domain"
)

const contentTypeCSV = "text/csv"

// Service fans a local file out to every configured destination.
type Service struct {
	publishers map[string]domain.Publisher
	logger     *slog.Logger
}

// NewService creates a Service from a set of publishers keyed by scheme.
func NewService(logger *slog.Logger, publishers ...domain.Publisher) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := make(map[string]domain.Publisher, len(publishers))
	for _, p := range publishers {
		m[p.Scheme()] = p
	}
	return &Service{publishers: m, logger: logger}
}

// NewServiceFromConfig builds a publisher for every storage backend that
// has credentials in cfg. GCS is always available through application
// default credentials, so it is only built when a destination needs it.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	var pubs []domain.Publisher
	needsGCS := false
	for _, dest := range cfg.PublishTargets {
		scheme, err := SchemeOf(dest)
		if err != nil {
			return nil, domain.ErrValidation("%v", err)
		}
		if scheme == SchemeGCS {
			needsGCS = true
		}
	}

	if cfg.HasS3Config() {
		p, err := NewS3Publisher(cfg.S3)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if cfg.HasAzureConfig() {
		p, err := NewAzurePublisher(cfg.Azure)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if needsGCS {
		p, err := NewGCSPublisher(ctx, cfg.GCSKeyFile)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return NewService(logger, pubs...), nil
}

// Validate checks that every destination parses and has a publisher.
func (s *Service) Validate(dests []string) error {
	for _, dest := range dests {
		if _, err := s.publisherFor(dest); err != nil {
			return err
		}
	}
	return nil
}

// PublishFile uploads the file at path to every destination concurrently.
// The first failure cancels the remaining uploads and is returned.
func (s *Service) PublishFile(ctx context.Context, path string, dests []string) error {
	if len(dests) == 0 {
		return nil
	}
	if err := s.Validate(dests); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, dest := range dests {
		g.Go(func() error {
			pub, _ := s.publisherFor(dest)
			f, err := os.Open(path) //nolint:gosec // path is caller-controlled
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close() //nolint:errcheck

			if err := pub.Publish(gctx, dest, f, info.Size()); err != nil {
				return fmt.Errorf("publish to %s: %w", dest, err)
			}
			s.logger.Info("merged dataset published", "destination", dest, "bytes", info.Size())
			return nil
		})
	}
	return g.Wait()
}

// Close releases publishers that hold client connections.
func (s *Service) Close() error {
	var errs []error
	for _, p := range s.publishers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *Service) publisherFor(dest string) (domain.Publisher, error) {
	scheme, err := SchemeOf(dest)
	if err != nil {
		return nil, domain.ErrValidation("%v", err)
	}
	pub, ok := s.publishers[scheme]
	if !ok {
		return nil, domain.ErrValidation("no credentials configured for %s:// destination %q", scheme, dest)
	}
	return pub, nil
}
