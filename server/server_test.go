package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mathcheck/grader"
	"github.com/c360studio/mathcheck/llm"
	"github.com/c360studio/mathcheck/model"
	"github.com/c360studio/mathcheck/storage"
)

// echoProvider returns a canned completion for server tests.
type echoProvider struct{}

func (echoProvider) Name() string                   { return "echo" }
func (echoProvider) BuildURL(base, _ string) string { return base }
func (echoProvider) SetHeaders(_ *http.Request)     {}

func (echoProvider) BuildRequestBody(m string, messages []llm.Message, _ *float64, _ int) ([]byte, error) {
	return json.Marshal(messages)
}

func (echoProvider) ParseResponse(body []byte, m string) (*llm.Response, error) {
	return &llm.Response{Content: string(body), Model: m}, nil
}

func init() {
	llm.RegisterProvider(echoProvider{})
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	return New(grader.New(), opts...).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestParseEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := postJSON(t, h, "/parse", map[string]string{
		"answer":     `\boxed{x;x^2}`,
		"parameters": "$x$",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ev struct {
		Success bool     `json:"success"`
		Results []string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.True(t, ev.Success)
	assert.Equal(t, []string{"2", "4"}, ev.Results)

	// Pipeline failures are reported in-band, not as HTTP errors.
	rec = postJSON(t, h, "/parse", map[string]string{"answer": "no box"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.False(t, ev.Success)
}

func TestParseRejectsBadBody(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/parse", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvalEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := postJSON(t, h, "/eval", map[string]string{
		"answer":   `\boxed{\frac{1}{2}}`,
		"solution": `\boxed{0.5}`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cmp struct {
		Equivalent bool   `json:"equivalent"`
		Mode       string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmp))
	assert.True(t, cmp.Equivalent)
	assert.Equal(t, "plain_numeric", cmp.Mode)
}

func TestEvalCMTEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := postJSON(t, h, "/eval_cmt", map[string]string{
		"answer":     `\boxed{c c_dag + c_dag c}`,
		"solution":   `\boxed{1}`,
		"parameters": `$(c, NC); (c_dag, NC)$`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cmp struct {
		Equivalent bool   `json:"equivalent"`
		Mode       string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmp))
	assert.True(t, cmp.Equivalent)
	assert.Equal(t, "symbolic_with_functions", cmp.Mode)
}

func TestEvalNumericsEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := postJSON(t, h, "/eval_cmt_numerics", map[string]string{
		"answer":   `\boxed{{1.0; 2.0}}`,
		"solution": `\boxed{{2.0; 1.0}}`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cmp struct {
		Equivalent bool `json:"equivalent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmp))
	assert.True(t, cmp.Equivalent)
}

func TestQueryAndModelsEndpoints(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `The answer is \boxed{42}`)
	}))
	defer backend.Close()

	reg, err := model.NewRegistry(map[string]*model.Endpoint{
		"echo-model": {Provider: "echo", URL: backend.URL, Model: "echo-1"},
	}, "echo-model")
	require.NoError(t, err)
	client := llm.NewClient(reg)

	h := newTestServer(t, WithLLM(client, reg))

	rec := postJSON(t, h, "/query", map[string]string{"question": "what is 6*7?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Content string   `json:"content"`
		Boxed   []string `json:"boxed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"42"}, resp.Boxed)

	rec = postJSON(t, h, "/query", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	var models struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(mrec.Body.Bytes(), &models))
	assert.Equal(t, []string{"echo-model"}, models.Models)
	assert.Equal(t, "echo-model", models.Default)
}

func TestFilesEndpoint(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "renders/a.jpg", []byte("jpg")))
	require.NoError(t, store.Save(context.Background(), "models.yaml", []byte("secret")))

	h := newTestServer(t, WithStore(store))

	req := httptest.NewRequest(http.MethodGet, "/files/renders/a.jpg", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpg", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/files/renders/missing.jpg", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Keys outside the allow-list are not served even when they exist.
	req = httptest.NewRequest(http.MethodGet, "/files/models.yaml", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)

	// Generate a little traffic first.
	postJSON(t, h, "/eval", map[string]string{
		"answer": `\boxed{1}`, "solution": `\boxed{1}`,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mathcheck_requests_total")
}
