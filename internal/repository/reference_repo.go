package repository

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/pkg/httpclient"
	"portfolio-tracker/pkg/logger"
)

type ReferenceRepository interface {
	// Load reads and parses the ticker reference table.
	Load(ctx context.Context) (*reference.Table, error)
}

type referenceRepository struct {
	source string
	client httpclient.HTTPClient
	logger *logger.Logger
}

func NewReferenceRepository(cfg *config.Config, log *logger.Logger) ReferenceRepository {
	repo := &referenceRepository{
		source: cfg.Reference.Source,
		logger: log,
	}
	if isRemote(repo.source) {
		repo.client = httpclient.New(repo.source, cfg.Quote.Timeout, map[string]string{"Accept": "text/csv, */*"})
	}
	return repo
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (r *referenceRepository) Load(ctx context.Context) (*reference.Table, error) {
	if r.source == "" {
		return nil, fmt.Errorf("reference source is not configured")
	}

	if r.client == nil {
		f, err := os.Open(r.source)
		if err != nil {
			return nil, fmt.Errorf("failed to open reference table: %w", err)
		}
		defer f.Close()
		return reference.ParseTable(f)
	}

	resp, err := r.client.Get(ctx, "", nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download reference table: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference table returned status %d", resp.StatusCode)
	}
	return reference.ParseTable(bytes.NewReader(resp.Body))
}
