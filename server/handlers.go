package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/optimizer"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/store"
	"github.com/promptdash/promptdash/variant"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode unmarshals and validates a request body.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func idFromURL(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analysisPayload is the scoring response shared by the ad-hoc and
// stored-prompt analyze endpoints.
type analysisPayload struct {
	Features    quality.FeatureVector         `json:"features"`
	QScore      float64                       `json:"q_score"`
	Breakdown   map[quality.Dimension]float64 `json:"breakdown"`
	Level       string                        `json:"level"`
	Suggestions []string                      `json:"suggestions"`
}

func analyze(text string) (analysisPayload, error) {
	features := quality.EstimateFeatures(text)
	score, err := quality.ComputeQ(features)
	if err != nil {
		return analysisPayload{}, err
	}
	return analysisPayload{
		Features:    features,
		QScore:      score.Q,
		Breakdown:   score.Breakdown,
		Level:       quality.Level(score.Q),
		Suggestions: quality.Suggest(features, quality.DefaultSuggestionThreshold),
	}, nil
}

type analyzeRequest struct {
	Text string `json:"text" validate:"required"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	payload, err := analyze(req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// llmDimensionScores is the structured-output contract for LLM-based
// scoring: the provider fills one score per rubric dimension.
type llmDimensionScores struct {
	Persona     float64 `json:"persona" validate:"gte=0,lte=1"`
	Tone        float64 `json:"tone" validate:"gte=0,lte=1"`
	Format      float64 `json:"format" validate:"gte=0,lte=1"`
	Specificity float64 `json:"specificity" validate:"gte=0,lte=1"`
	Constraints float64 `json:"constraints" validate:"gte=0,lte=1"`
	Context     float64 `json:"context" validate:"gte=0,lte=1"`
	Rationale   string  `json:"rationale"`
}

func (d llmDimensionScores) featureVector() quality.FeatureVector {
	return quality.FeatureVector{
		quality.Persona:     d.Persona,
		quality.Tone:        d.Tone,
		quality.Format:      d.Format,
		quality.Specificity: d.Specificity,
		quality.Constraints: d.Constraints,
		quality.Context:     d.Context,
	}
}

const llmAnalyzeInstruction = `Score the following prompt on six dimensions, each from 0.0 to 1.0:
persona (explicit role specification), tone (voice and register guidance),
format (output structure requirements), specificity (quantified constraints),
constraints (enforcement and validation rules), context (background and audience).
Include a one-sentence rationale.

Prompt to score:
%s`

// handleLLMAnalyze scores a prompt with the provider instead of the local
// heuristic analyzer, using structured output to keep the response typed.
func (s *Server) handleLLMAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	var scores llmDimensionScores
	resp, err := s.generator.GenerateStructured(r.Context(), gateway.Request{
		Prompt:    fmt.Sprintf(llmAnalyzeInstruction, req.Text),
		MaxTokens: 400,
	}, &scores)
	if err != nil {
		s.writeError(w, err)
		return
	}

	features := scores.featureVector()
	score, err := quality.ComputeQ(features)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"features":  features,
		"q_score":   score.Q,
		"breakdown": score.Breakdown,
		"level":     quality.Level(score.Q),
		"rationale": scores.Rationale,
		"model":     resp.Model,
		"cost_usd":  resp.CostUSD,
	})
}

type bulkRequest struct {
	Prompts []analyzeRequest `json:"prompts" validate:"required,min=1,dive"`
}

func (s *Server) handleBulkAnalyze(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	type bulkResult struct {
		Text     string                `json:"text"`
		QScore   float64               `json:"q_score"`
		Features quality.FeatureVector `json:"features"`
	}
	results := make([]bulkResult, 0, len(req.Prompts))
	for _, item := range req.Prompts {
		payload, err := analyze(item.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		results = append(results, bulkResult{Text: item.Text, QScore: payload.QScore, Features: payload.Features})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"processed": len(results),
		"results":   results,
	})
}

type createPromptRequest struct {
	Text     string   `json:"text" validate:"required"`
	Tags     []string `json:"tags"`
	ParentID *string  `json:"parent_id" validate:"omitempty,uuid"`
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	var parentID *uuid.UUID
	if req.ParentID != nil {
		id, err := uuid.Parse(*req.ParentID)
		if err != nil {
			s.writeBadRequest(w, err)
			return
		}
		parentID = &id
	}

	features := quality.EstimateFeatures(req.Text)
	score, err := quality.ComputeQ(features)
	if err != nil {
		s.writeError(w, err)
		return
	}

	prompt, err := s.store.Create(r.Context(), req.Text, req.Tags, score, features, parentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, prompt)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if prompts == nil {
		prompts = []store.Prompt{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prompts": prompts,
		"total":   len(prompts),
	})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	prompt, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyzePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	prompt, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload, err := analyze(prompt.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	prompt, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	set, err := variant.Generate(prompt.Text, quality.EstimateFeatures)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"variants":   set.Variants,
		"comparison": map[string]any{"winner": set.Winner},
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.store.Analytics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err := s.store.ExportJSON(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case "csv":
		data, err := s.store.ExportCSV(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename=prompts.csv`)
		_, _ = w.Write([]byte(data))
	default:
		s.writeBadRequest(w, fmt.Errorf("unknown export format %q", format))
	}
}

// refinementHints name the single most effective addition for each
// dimension, used by the no-provider refine endpoint.
var refinementHints = map[quality.Dimension]string{
	quality.Persona:     "Add: 'You are an [Expert Role] with [X] years of experience in [Domain].'",
	quality.Tone:        "Add: 'Use a [Formal/Technical/Academic] tone appropriate for [Audience].'",
	quality.Format:      "Add: 'Output should be in [JSON/Markdown/Table] format with the following structure: [Schema].'",
	quality.Specificity: "Add: 'Ensure the output meets these metrics: [Latency/Accuracy/Count].'",
	quality.Constraints: "Add: 'Constraints: Must include [X], Cannot use [Y], Validation rules: [Rules].'",
	quality.Context:     "Add: 'Context: This is for [Project/Use Case]. Background: [History]. Target Audience: [Audience].'",
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	features := quality.EstimateFeatures(req.Text)
	score, err := quality.ComputeQ(features)
	if err != nil {
		s.writeError(w, err)
		return
	}

	weakest := features.Lowest()
	hint := refinementHints[weakest]

	instruction := fmt.Sprintf("To improve your prompt's %s score from %.2f, %s",
		weakest.Name(), features[weakest], strings.ToLower(hint[:1])+hint[1:])

	s.writeJSON(w, http.StatusOK, map[string]any{
		"original_q":             score.Q,
		"weakest_dimension":      weakest.Name(),
		"weakest_score":          features[weakest],
		"suggestion":             hint,
		"actionable_instruction": instruction,
	})
}

type optimizeRequest struct {
	Prompt        string  `json:"prompt" validate:"required"`
	TargetQuality float64 `json:"target_quality" validate:"gte=0,lte=1"`
	Strategy      string  `json:"strategy"`
	MaxIterations int     `json:"max_iterations" validate:"gte=0"`
	Save          bool    `json:"save"`
	ParentID      *string `json:"parent_id" validate:"omitempty,uuid"`
	ReportFormat  string  `json:"report_format" validate:"omitempty,oneof=markdown json html"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	strategy := optimizer.StrategyBalanced
	if req.Strategy != "" {
		parsed, err := optimizer.ParseStrategy(req.Strategy)
		if err != nil {
			s.writeError(w, err)
			return
		}
		strategy = parsed
	}

	result, err := s.optimizer.Optimize(r.Context(), optimizer.Params{
		Prompt:        req.Prompt,
		TargetQuality: req.TargetQuality,
		Strategy:      strategy,
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := map[string]any{"result": result}

	if req.Save {
		var parentID *uuid.UUID
		if req.ParentID != nil {
			id, err := uuid.Parse(*req.ParentID)
			if err != nil {
				s.writeBadRequest(w, err)
				return
			}
			parentID = &id
		}
		storedID, err := s.optimizer.SaveResult(r.Context(), result, parentID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		payload["stored_id"] = storedID
	}

	if req.ReportFormat != "" {
		report, err := optimizer.RenderReport(result, optimizer.ReportFormat(req.ReportFormat))
		if err != nil {
			s.writeError(w, err)
			return
		}
		payload["report"] = report
	}

	s.writeJSON(w, http.StatusOK, payload)
}

type estimateRequest struct {
	Prompt        string  `json:"prompt" validate:"required"`
	TargetQuality float64 `json:"target_quality" validate:"gte=0,lte=1"`
	Strategy      string  `json:"strategy"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	strategy := optimizer.StrategyBalanced
	if req.Strategy != "" {
		parsed, err := optimizer.ParseStrategy(req.Strategy)
		if err != nil {
			s.writeError(w, err)
			return
		}
		strategy = parsed
	}

	features := quality.EstimateFeatures(req.Prompt)
	score, err := quality.ComputeQ(features)
	if err != nil {
		s.writeError(w, err)
		return
	}

	target := req.TargetQuality
	if target <= 0 {
		cfg, err := strategy.Config()
		if err != nil {
			s.writeError(w, err)
			return
		}
		target = cfg.TargetQ
	}

	estimate, err := s.optimizer.EstimateCost(req.Prompt, score.Q, target, strategy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, estimate)
}

type generateRequest struct {
	Prompt         string  `json:"prompt" validate:"required"`
	Temperature    float64 `json:"temperature" validate:"gte=0,lte=1"`
	MaxTokens      int     `json:"max_tokens" validate:"gte=0"`
	SystemMessage  string  `json:"system_message"`
	AnalyzeQuality bool    `json:"analyze_quality"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	resp, err := s.generator.Generate(r.Context(), gateway.Request{
		Prompt:         req.Prompt,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		SystemMessage:  req.SystemMessage,
		AnalyzeQuality: req.AnalyzeQuality,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
