package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/SurveyBot/internal/llm"
	"github.com/JonMunkholm/SurveyBot/internal/schema"
	"github.com/JonMunkholm/SurveyBot/internal/tablecontext"
	"github.com/JonMunkholm/SurveyBot/internal/warehouse"
)

const (
	contextTimeout  = 30 * time.Second
	generateTimeout = 60 * time.Second
)

func (a *app) serve() error {
	a.log.Info("listening", "addr", a.cfg.Addr, "table", a.cfg.QualifiedTableName())
	return http.ListenAndServe(a.cfg.Addr, a.routes())
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", a.handlePrompt)
	r.Get("/context", a.handleContext)
	r.Post("/context/refresh", a.handleContextRefresh)
	r.Post("/generate-sql", a.handleGenerateSQL)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (a *app) handlePrompt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), contextTimeout)
	defer cancel()

	prompt, err := a.systemPrompt(ctx)
	if err != nil {
		a.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(prompt))
}

func (a *app) handleContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), contextTimeout)
	defer cancel()

	block, err := a.tableContext(ctx)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

func (a *app) handleContextRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), contextTimeout)
	defer cancel()

	a.assembler.Invalidate()
	block, err := a.tableContext(ctx)
	if err != nil {
		a.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

type generateSQLRequest struct {
	Prompt string `json:"prompt"`
}

type generateSQLResponse struct {
	Reply  string `json:"reply,omitempty"`
	SQL    string `json:"sql,omitempty"`
	Error  string `json:"error,omitempty"`
	Tokens int    `json:"tokens,omitempty"`
}

func (a *app) handleGenerateSQL(w http.ResponseWriter, r *http.Request) {
	if a.llm == nil {
		respondJSON(w, http.StatusServiceUnavailable, generateSQLResponse{
			Error: "LLM not configured. Set LLM_API_KEY or llm.api_key in the config file.",
		})
		return
	}

	var req generateSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, generateSQLResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondJSON(w, http.StatusBadRequest, generateSQLResponse{Error: "prompt is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	systemPrompt, err := a.systemPrompt(ctx)
	if err != nil {
		a.respondError(w, err)
		return
	}

	resp, err := a.llm.GenerateSQL(ctx, llm.GenerateRequest{
		SystemPrompt: systemPrompt,
		Prompt:       req.Prompt,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, llm.ErrProvider):
			status = http.StatusBadGateway
		}
		a.log.Error("LLM request failed", "provider", a.llm.Name(), "status", status, "error", err)
		respondJSON(w, status, generateSQLResponse{Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, generateSQLResponse{Reply: resp.Reply, SQL: resp.SQL, Tokens: resp.Tokens})
}

// respondError maps table context failures to HTTP statuses.
func (a *app) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schema.ErrInvalidIdentifier):
		status = http.StatusBadRequest
	case errors.Is(err, schema.ErrSchemaNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tablecontext.ErrEnrichmentQuery), errors.Is(err, warehouse.ErrConnection):
		status = http.StatusBadGateway
	}
	a.log.Error("table context failed", "status", status, "error", err)
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
