package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/mathcheck/extract"
	"github.com/c360studio/mathcheck/grader"
	"github.com/c360studio/mathcheck/llm"
	"github.com/c360studio/mathcheck/normalize"
	"github.com/c360studio/mathcheck/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseRequest runs one answer through the pipeline without comparing it to
// anything.
type parseRequest struct {
	Answer     string `json:"answer"`
	Parameters string `json:"parameters,omitempty"`
	Functions  string `json:"functions,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev := s.grader.Evaluate(grader.Request{
		Answer:     req.Answer,
		Parameters: req.Parameters,
		Functions:  req.Functions,
	})
	if !ev.Success {
		gradingFailures.WithLabelValues("parse").Inc()
	}
	writeJSON(w, http.StatusOK, ev)
}

// evalRequest grades an answer against a solution.
type evalRequest struct {
	Answer     string `json:"answer"`
	Solution   string `json:"solution"`
	Parameters string `json:"parameters,omitempty"`
	Functions  string `json:"functions,omitempty"`
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cmp := s.grader.Compare(req.Answer, req.Solution, req.Parameters, req.Functions)
	comparisonsTotal.WithLabelValues(cmp.Mode, boolLabel(cmp.Equivalent)).Inc()
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleEvalNumerics(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cmp := s.grader.CompareLiterals(req.Answer, req.Solution)
	comparisonsTotal.WithLabelValues(cmp.Mode, boolLabel(cmp.Equivalent)).Inc()
	writeJSON(w, http.StatusOK, cmp)
}

// queryRequest asks a model to solve a problem.
type queryRequest struct {
	Model    string `json:"model,omitempty"`
	Question string `json:"question"`
}

// queryResponse carries the completion plus the extracted boxed payload
// when one is present.
type queryResponse struct {
	RequestID string   `json:"request_id"`
	Model     string   `json:"model"`
	Content   string   `json:"content"`
	Boxed     []string `json:"boxed,omitempty"`
}

const querySystemPrompt = `You are solving a mathematics or physics problem. ` +
	`Work through the problem, then put your final answer in \boxed{...}. ` +
	`Separate multiple sub-answers with semicolons inside the box.`

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	question := req.Question
	if s.suffix != nil {
		if suffix := s.suffix.Get(); suffix != "" {
			question += "\n\n" + suffix
		}
	}

	resp, err := s.client.Complete(r.Context(), llm.Request{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: "system", Content: querySystemPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		status := http.StatusBadGateway
		if llm.IsFatal(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	out := queryResponse{
		RequestID: resp.RequestID,
		Model:     resp.Model,
		Content:   resp.Content,
	}
	if boxed, err := extract.Answer(normalize.ReplaceUnicode(resp.Content)); err == nil {
		out.Boxed = boxed
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  s.registry.Names(),
		"default": s.registry.Default(),
	})
}

type renderRequest struct {
	Markup string `json:"markup"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := s.renderer.Render(r.Context(), req.Markup)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"key": key,
		"url": "/files/" + key,
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/files/")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing file key")
		return
	}
	if !s.fileAllowed(key) {
		writeError(w, http.StatusNotFound, "no such file")
		return
	}
	data, err := s.store.Load(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such file")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		w.Header().Set("Content-Type", "image/jpeg")
	case strings.HasSuffix(key, ".png"):
		w.Header().Set("Content-Type", "image/png")
	}
	w.Write(data)
}

// fileAllowed checks a key against the served-file glob allow-list.
func (s *Server) fileAllowed(key string) bool {
	for _, pattern := range s.filePatterns {
		if ok, err := doublestar.Match(pattern, key); err == nil && ok {
			return true
		}
	}
	return false
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
