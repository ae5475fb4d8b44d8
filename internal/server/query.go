package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nicozefrench/diveteacher/internal/rag"
)

// Question length and generation parameter bounds.
const (
	maxQuestionLen = 1000
	minAnswerToks  = 100
	maxAnswerToks  = 4000
)

// queryRequest is the body of /api/query and /api/query/stream.
type queryRequest struct {
	Question     string   `json:"question"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	GroupIDs     []string `json:"group_ids,omitempty"`
	UseReranking *bool    `json:"use_reranking,omitempty"`
}

// validate maps invalid parameters to a 422 detail message.
func (q *queryRequest) validate() string {
	if len(q.Question) == 0 {
		return "question must not be empty"
	}
	if len(q.Question) > maxQuestionLen {
		return fmt.Sprintf("question exceeds %d characters", maxQuestionLen)
	}
	if q.Temperature != nil && (*q.Temperature < 0 || *q.Temperature > 1) {
		return "temperature must be between 0 and 1"
	}
	if q.MaxTokens != nil && (*q.MaxTokens < minAnswerToks || *q.MaxTokens > maxAnswerToks) {
		return fmt.Sprintf("max_tokens must be between %d and %d", minAnswerToks, maxAnswerToks)
	}
	return ""
}

func (q *queryRequest) params() rag.Params {
	return rag.Params{
		Temperature:  q.Temperature,
		MaxTokens:    q.MaxTokens,
		GroupIDs:     q.GroupIDs,
		UseReranking: q.UseReranking,
	}
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if detail := req.validate(); detail != "" {
		respondError(w, http.StatusUnprocessableEntity, detail)
		return nil, false
	}
	return &req, true
}

// handleQuery answers a question in one response.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := s.answerer.Query(r.Context(), req.Question, req.params())
	if err != nil {
		s.logger.Error("query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate answer")
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

// handleQueryStream answers a question as server-sent events: one
// `data:` line per token, then [DONE], or [ERROR: msg] on failure.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	res, err := s.answerer.Stream(r.Context(), req.Question, req.params())
	if err != nil {
		s.logger.Error("query stream failed to start", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to start answer stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Retrieval facts are known before the first token; expose them as
	// headers since the body is the raw token stream.
	w.Header().Set("X-Num-Sources", strconv.Itoa(res.NumSources))
	w.Header().Set("X-Reranked", strconv.FormatBool(res.Reranked))
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for tok := range res.Tokens {
		fmt.Fprintf(w, "data: %s\n\n", tok)
		flusher.Flush()
	}

	if err := <-res.Errs; err != nil {
		s.logger.Error("query stream failed", "error", err)
		fmt.Fprintf(w, "data: [ERROR: %s]\n\n", err.Error())
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleQueryHealth runs a tiny completion against the LLM.
func (s *Server) handleQueryHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := s.answerer.Healthy(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
