package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceCSV = "Stock Name,Basic Industry,Sector\nTCS,IT Services,Information Technology\nHDFCBANK,Private Sector Bank,Financial Services\n"

func referenceConfig(source string) *config.Config {
	return &config.Config{
		Reference: config.Reference{Source: source},
		Quote:     config.Quote{Timeout: 2 * time.Second},
	}
}

func TestReferenceRepository_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.csv")
	require.NoError(t, os.WriteFile(path, []byte(referenceCSV), 0o600))

	repo := NewReferenceRepository(referenceConfig(path), logger.NewNop())
	table, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	e, ok := table.Get("hdfcbank")
	require.True(t, ok)
	assert.Equal(t, "Financial Services", e.Sector)
}

func TestReferenceRepository_LoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(referenceCSV))
	}))
	defer srv.Close()

	repo := NewReferenceRepository(referenceConfig(srv.URL+"/reference.csv"), logger.NewNop())
	table, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestReferenceRepository_LoadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		source string
	}{
		{name: "not configured", source: ""},
		{name: "missing file", source: filepath.Join(t.TempDir(), "missing.csv")},
		{name: "http error", source: srv.URL + "/reference.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewReferenceRepository(referenceConfig(tt.source), logger.NewNop())
			table, err := repo.Load(context.Background())
			assert.Error(t, err)
			assert.Nil(t, table)
		})
	}
}
