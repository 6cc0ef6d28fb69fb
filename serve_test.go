package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/SurveyBot/internal/config"
	"github.com/JonMunkholm/SurveyBot/internal/llm"
	"github.com/JonMunkholm/SurveyBot/internal/tablecontext"
	"github.com/JonMunkholm/SurveyBot/internal/warehouse"
)

type stubWarehouse struct {
	columns [][]any
	ages    [][]any
	err     error
	calls   atomic.Int32
}

func (s *stubWarehouse) Query(ctx context.Context, query string, args ...any) (*warehouse.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if strings.Contains(query, "INFORMATION_SCHEMA.COLUMNS") {
		return &warehouse.Result{Columns: []string{"COLUMN_NAME", "DATA_TYPE"}, Rows: s.columns}, nil
	}
	return &warehouse.Result{Columns: []string{"AGE"}, Rows: s.ages}, nil
}

type stubProvider struct {
	got llm.GenerateRequest
	err error
}

func (p *stubProvider) GenerateSQL(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	p.got = req
	if p.err != nil {
		return llm.GenerateResponse{}, p.err
	}
	return llm.ParseResponse("Sure.\n```sql\nSELECT AVG(AGE) FROM GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES;\n```"), nil
}

func (p *stubProvider) Name() string { return "stub" }

func newTestApp(t *testing.T, wh warehouse.Querier) *app {
	t.Helper()
	t.Setenv("LLM_API_KEY", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return newApp(cfg, wh, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func surveyWarehouse() *stubWarehouse {
	return &stubWarehouse{
		columns: [][]any{{"AGE", "NUMBER"}, {"STRESS_LEVEL", "NUMBER"}, {"COMMENT", "TEXT"}},
		ages:    [][]any{{int64(25)}, {int64(41)}},
	}
}

func TestHandlePrompt(t *testing.T) {
	wh := surveyWarehouse()
	a := newTestApp(t, wh)

	for range 2 {
		rec := httptest.NewRecorder()
		a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<tableName> GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES </tableName>")
		assert.Contains(t, body, "- **STRESS_LEVEL**: NUMBER")
		assert.Contains(t, body, "Available variables by AGE:\n\n- **25**: 25\n- **41**: 41")
		assert.NotContains(t, body, "{{")
	}
	assert.EqualValues(t, 2, wh.calls.Load())
}

func TestHandleContextRefresh(t *testing.T) {
	wh := surveyWarehouse()
	a := newTestApp(t, wh)
	h := a.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/context", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var block tablecontext.Block
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &block))
	assert.Equal(t, "GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES", block.Table)
	assert.Equal(t, []string{"25", "41"}, block.Enrichment)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/context/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, wh.calls.Load())
}

func TestHandleContext_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		wh   *stubWarehouse
		want int
	}{
		{"schema not found", &stubWarehouse{}, http.StatusNotFound},
		{"connection", &stubWarehouse{err: errors.Join(warehouse.ErrConnection, errors.New("timeout"))}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, tt.wh)
			rec := httptest.NewRecorder()
			a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/context", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleGenerateSQL(t *testing.T) {
	a := newTestApp(t, surveyWarehouse())

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-sql", strings.NewReader(`{"prompt":"average age?"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	provider := &stubProvider{}
	a.llm = provider

	rec = httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-sql", strings.NewReader(`{"prompt":"average age?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp generateSQLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SELECT AVG(AGE) FROM GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES;", resp.SQL)
	assert.Equal(t, "average age?", provider.got.Prompt)
	assert.Contains(t, provider.got.SystemPrompt, "<columns>")

	rec = httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-sql", strings.NewReader(`{"prompt":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateSQL_ProviderError(t *testing.T) {
	a := newTestApp(t, surveyWarehouse())
	a.llm = &stubProvider{err: fmt.Errorf("%w: 401 Unauthorized: invalid api key", llm.ErrProvider)}

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-sql", strings.NewReader(`{"prompt":"average age?"}`)))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp generateSQLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid api key")
	assert.Empty(t, resp.SQL)
}
