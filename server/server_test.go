package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/optimizer"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/store"
	"github.com/promptdash/promptdash/utils"
)

type fakeStore struct {
	mu        sync.Mutex
	prompts   map[uuid.UUID]*store.Prompt
	analytics store.Analytics
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{prompts: map[uuid.UUID]*store.Prompt{}}
}

func (f *fakeStore) Create(_ context.Context, text string, tags []string, score quality.Score, features quality.FeatureVector, parentID *uuid.UUID) (*store.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &store.Prompt{
		ID: uuid.New(), Text: text, Tags: tags, QScore: score.Q,
		Features: features, Version: 1, ParentID: parentID,
	}
	f.prompts[p.ID] = p
	return p, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*store.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) List(context.Context) ([]store.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Prompt
	for _, p := range f.prompts {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.prompts, id)
	return nil
}

func (f *fakeStore) Analytics(context.Context) (store.Analytics, error) {
	return f.analytics, nil
}

func (f *fakeStore) ExportCSV(context.Context) (string, error) {
	return "id,version,q_score,text,tags\n", nil
}

func (f *fakeStore) ExportJSON(context.Context) ([]byte, error) {
	return []byte("[]"), nil
}

type fakeOptimizer struct {
	result   *optimizer.Result
	estimate optimizer.CostEstimate
	savedID  uuid.UUID
	err      error
}

func (f *fakeOptimizer) Optimize(context.Context, optimizer.Params) (*optimizer.Result, error) {
	return f.result, f.err
}

func (f *fakeOptimizer) EstimateCost(string, float64, float64, optimizer.Strategy) (optimizer.CostEstimate, error) {
	return f.estimate, f.err
}

func (f *fakeOptimizer) SaveResult(context.Context, *optimizer.Result, *uuid.UUID) (uuid.UUID, error) {
	return f.savedID, f.err
}

type fakeGen struct {
	resp       *gateway.Response
	structured string
	err        error
}

func (f *fakeGen) Generate(context.Context, gateway.Request) (*gateway.Response, error) {
	return f.resp, f.err
}

func (f *fakeGen) GenerateStructured(_ context.Context, _ gateway.Request, out any) (*gateway.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := json.Unmarshal([]byte(f.structured), out); err != nil {
		return nil, err
	}
	return f.resp, nil
}

func newTestServer(st PromptStore, opt Optimizer, gen Generator) http.Handler {
	if st == nil {
		st = newFakeStore()
	}
	if opt == nil {
		opt = &fakeOptimizer{}
	}
	if gen == nil {
		gen = &fakeGen{}
	}
	return New(st, opt, gen, utils.NewLogger(utils.LogLevelOff)).Routes()
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestAnalyze(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	t.Run("scores text", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/analyze",
			map[string]string{"text": "You are a senior engineer. Respond in JSON."})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Contains(t, body, "q_score")
		assert.Contains(t, body, "features")
		assert.Contains(t, body, "level")
		assert.Contains(t, body, "suggestions")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/analyze", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBulkAnalyze(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/prompts/bulk", map[string]any{
		"prompts": []map[string]string{{"text": "first"}, {"text": "second"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody(t, rec)["processed"])
}

func TestPromptCRUD(t *testing.T) {
	st := newFakeStore()
	handler := newTestServer(st, nil, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/prompts",
		map[string]any{"text": "You are a reviewer. Check style.", "tags": []string{"review"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id := created["id"].(string)

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["total"])

	rec = doRequest(t, handler, http.MethodDelete, "/api/prompts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVariants(t *testing.T) {
	st := newFakeStore()
	handler := newTestServer(st, nil, nil)

	p, err := st.Create(context.Background(), "You are an expert. Write docs. Be brief.", nil,
		quality.Score{Q: 0.5}, quality.EstimateFeatures("x"), nil)
	require.NoError(t, err)

	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/prompts/%s/variants", p.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Len(t, body["variants"], 3)
	assert.Contains(t, body["comparison"].(map[string]any), "winner")
}

func TestExport(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/api/prompts/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = doRequest(t, handler, http.MethodGet, "/api/prompts/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefine(t *testing.T) {
	handler := newTestServer(nil, nil, nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/prompts/refine",
		map[string]string{"text": "do the thing"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "weakest_dimension")
	assert.Contains(t, body, "suggestion")
	assert.Contains(t, body, "actionable_instruction")
}

func TestOptimize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		opt := &fakeOptimizer{result: &optimizer.Result{
			RunID: uuid.New(), Status: optimizer.StatusSuccess, OptimizedPrompt: "better",
		}}
		rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh", "strategy": "balanced"})
		require.Equal(t, http.StatusOK, rec.Code)
		result := decodeBody(t, rec)["result"].(map[string]any)
		assert.Equal(t, "better", result["optimized_prompt"])
	})

	t.Run("unknown strategy is a client error", func(t *testing.T) {
		rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh", "strategy": "turbo"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cost limit maps to 402", func(t *testing.T) {
		opt := &fakeOptimizer{err: fmt.Errorf("gate: %w", optimizer.ErrCostLimitExceeded)}
		rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh"})
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("provider failure maps to 502", func(t *testing.T) {
		opt := &fakeOptimizer{err: gateway.NewError(gateway.ErrorTypeProviderCall, "exhausted", errors.New("boom"))}
		rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("open breaker maps to 503", func(t *testing.T) {
		opt := &fakeOptimizer{err: gateway.NewError(gateway.ErrorTypeCircuitOpen, "open", nil)}
		rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("save returns stored id", func(t *testing.T) {
		opt := &fakeOptimizer{
			result:  &optimizer.Result{Status: optimizer.StatusSuccess},
			savedID: uuid.New(),
		}
		rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize",
			map[string]any{"prompt": "meh", "save": true})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, opt.savedID.String(), decodeBody(t, rec)["stored_id"])
	})
}

func TestEstimate(t *testing.T) {
	opt := &fakeOptimizer{estimate: optimizer.CostEstimate{
		EstimatedIterations: 2,
		EstimatedCostUSD:    0.03,
	}}
	rec := doRequest(t, newTestServer(nil, opt, nil), http.MethodPost, "/api/optimize/estimate",
		map[string]any{"prompt": "write about AI"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody(t, rec)["estimated_iterations"])
}

func TestGenerate(t *testing.T) {
	t.Run("returns provider response", func(t *testing.T) {
		gen := &fakeGen{resp: &gateway.Response{Text: "answer", Provider: "mock"}}
		rec := doRequest(t, newTestServer(nil, nil, gen), http.MethodPost, "/api/generate",
			map[string]any{"prompt": "ask"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "answer", decodeBody(t, rec)["text"])
	})

	t.Run("request validation maps to 400", func(t *testing.T) {
		gen := &fakeGen{err: gateway.NewError(gateway.ErrorTypeRequest, "invalid", nil)}
		rec := doRequest(t, newTestServer(nil, nil, gen), http.MethodPost, "/api/generate",
			map[string]any{"prompt": "ask"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLLMAnalyze(t *testing.T) {
	t.Run("computes Q from provider scores", func(t *testing.T) {
		gen := &fakeGen{
			resp: &gateway.Response{Model: "test-model", CostUSD: 0.002},
			structured: `{"persona":0.9,"tone":0.8,"format":0.85,"specificity":0.7,
				"constraints":0.6,"context":0.75,"rationale":"solid role and format"}`,
		}
		rec := doRequest(t, newTestServer(nil, nil, gen), http.MethodPost, "/api/analyze/llm",
			map[string]any{"text": "You are a reviewer. Return JSON."})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 0.7810, body["q_score"], 1e-9)
		assert.Equal(t, "solid role and format", body["rationale"])
		assert.Equal(t, "test-model", body["model"])
	})

	t.Run("provider failure maps to 502", func(t *testing.T) {
		gen := &fakeGen{err: gateway.NewError(gateway.ErrorTypeProviderCall, "upstream down", nil)}
		rec := doRequest(t, newTestServer(nil, nil, gen), http.MethodPost, "/api/analyze/llm",
			map[string]any{"text": "score me"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAnalyticsEndpoint(t *testing.T) {
	st := newFakeStore()
	st.analytics = store.Analytics{
		Count: 3, AvgQ: 0.81,
		Distribution: map[string]int{quality.LevelGood: 3},
	}
	rec := doRequest(t, newTestServer(st, nil, nil), http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["count"])
}
