package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidrapanel/internal/config"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/shared/testutil"
	"sidrapanel/pkg/contracts/domain"
)

const arrayPayload = `[
  ["Nível Territorial", "Unidade da Federação", "Ano", "Valor"],
  ["Unidade da Federação", "Acre", "2010", "10"],
  ["Unidade da Federação", "São Paulo", "2010", "100"],
  ["Unidade da Federação", "Roraima", "2010", "-"]
]`

const objectPayload = `[
  {"NC": "Nível Territorial (Código)", "D1C": "Unidade da Federação (Código)", "D1N": "Unidade da Federação", "D2N": "Ano", "V": "Valor"},
  {"NC": "3", "D1C": "12", "D1N": "Acre", "D2N": "2010", "V": "10"},
  {"NC": "3", "D1C": "35", "D1N": "São Paulo", "D2N": 2011, "V": 100}
]`

func defaultLabels() HeaderLabels {
	return HeaderLabels{Unit: "Unidade da Federação", Year: "Ano", Value: "Valor"}
}

func testSourcesConfig(url string) config.SourcesConfig {
	cfg := config.Default().Sources
	cfg.SidraURL = url
	cfg.Timeout = 2 * time.Second
	cfg.RateLimitRPS = 1000
	return cfg
}

func TestParseSidraResponse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        domain.EconomicTable
		wantErrType apperrors.ErrorType
	}{
		{
			name: "array rows",
			body: arrayPayload,
			want: domain.EconomicTable{
				{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "10"},
				{FederativeUnit: "São Paulo", Year: "2010", ActiveBusinessCount: "100"},
				{FederativeUnit: "Roraima", Year: "2010", ActiveBusinessCount: "-"},
			},
		},
		{
			name: "object rows keyed by column code",
			body: objectPayload,
			want: domain.EconomicTable{
				{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "10"},
				{FederativeUnit: "São Paulo", Year: "2011", ActiveBusinessCount: "100"},
			},
		},
		{
			name: "empty array",
			body: `[]`,
			want: domain.EconomicTable{},
		},
		{
			name: "header only",
			body: `[["Unidade da Federação", "Ano", "Valor"]]`,
			want: domain.EconomicTable{},
		},
		{
			name:        "missing value column",
			body:        `[["Unidade da Federação", "Ano"], ["Acre", "2010"]]`,
			wantErrType: apperrors.ErrTypeParsing,
		},
		{
			name:        "not an array",
			body:        `{"error": "bad request"}`,
			wantErrType: apperrors.ErrTypeParsing,
		},
		{
			name:        "scalar row",
			body:        `[["Unidade da Federação", "Ano", "Valor"], 42]`,
			wantErrType: apperrors.ErrTypeParsing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSidraResponse([]byte(tt.body), defaultLabels())
			if tt.wantErrType != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantErrType), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSidraResponseLabelMatchingIgnoresAccents(t *testing.T) {
	body := `[["UNIDADE DA FEDERACAO", "ano", "valor"], ["Acre", "2010", "5"]]`
	got, err := ParseSidraResponse([]byte(body), defaultLabels())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0].ActiveBusinessCount)
}

func TestFetchEconomicSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(arrayPayload))
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	client := NewSidraClient(testSourcesConfig(server.URL), logger)

	table, err := client.FetchEconomic(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 3)
}

func TestFetchEconomicRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(arrayPayload))
	}))
	defer server.Close()

	logger, logs := testutil.NewTestLogger(t)
	client := NewSidraClient(testSourcesConfig(server.URL), logger)

	table, err := client.FetchEconomic(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, logs.ContainsMessage("retrying"))
}

func TestFetchEconomicGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	cfg := testSourcesConfig(server.URL)
	cfg.MaxRetries = 2
	client := NewSidraClient(cfg, logger)

	_, err := client.FetchEconomic(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchEconomicDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such table", http.StatusNotFound)
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	client := NewSidraClient(testSourcesConfig(server.URL), logger)

	_, err := client.FetchEconomic(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchEconomicRejectsOversizedBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(arrayPayload))
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	cfg := testSourcesConfig(server.URL)
	cfg.MaxRetries = 2

	t.Run("one byte over the cap", func(t *testing.T) {
		limit := int64(len(arrayPayload) - 1)
		client := NewSidraClient(cfg, logger, WithMaxBodyBytes(limit))

		_, err := client.FetchEconomic(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
		assert.Contains(t, err.Error(), fmt.Sprintf("exceeds %d bytes", limit))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("exactly at the cap", func(t *testing.T) {
		client := NewSidraClient(cfg, logger, WithMaxBodyBytes(int64(len(arrayPayload))))

		table, err := client.FetchEconomic(context.Background())
		require.NoError(t, err)
		assert.Len(t, table, 3)
	})
}

func TestFetchEconomicTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	logger, _ := testutil.NewTestLogger(t)
	cfg := testSourcesConfig(url)
	cfg.MaxRetries = 1
	client := NewSidraClient(cfg, logger)

	_, err := client.FetchEconomic(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
}

func TestFetchEconomicCancelledContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	client := NewSidraClient(testSourcesConfig("http://127.0.0.1:1"), logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchEconomic(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
}
