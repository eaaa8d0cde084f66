package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mathcheck/llm"
)

func TestProvidersRegistered(t *testing.T) {
	assert.NotNil(t, llm.GetProvider("openai"))
	assert.NotNil(t, llm.GetProvider("gemini"))
}

func TestOpenAIBuildURL(t *testing.T) {
	p := &OpenAIProvider{}
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL("", "gpt-4o"))
	assert.Equal(t, "http://host/v1/chat/completions", p.BuildURL("http://host/v1/", "gpt-4o"))
	assert.Equal(t, "http://host/v1/chat/completions", p.BuildURL("http://host/v1/chat/completions", "gpt-4o"))
}

func TestOpenAIRequestBody(t *testing.T) {
	p := &OpenAIProvider{}
	temp := 0.0
	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{
		{Role: "system", Content: "grade strictly"},
		{Role: "user", Content: "question"},
	}, &temp, 256)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "gpt-4o", req["model"])
	assert.Equal(t, 0.0, req["temperature"])
	assert.Equal(t, 256.0, req["max_tokens"])
	assert.Len(t, req["messages"], 2)
}

func TestOpenAIParseResponse(t *testing.T) {
	p := &OpenAIProvider{}
	resp, err := p.ParseResponse([]byte(`{
		"model": "gpt-4o",
		"choices": [{"message": {"role": "assistant", "content": "\\boxed{2}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, `\boxed{2}`, resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	_, err = p.ParseResponse([]byte(`{"choices": []}`), "gpt-4o")
	assert.Error(t, err)
}

func TestGeminiBuildURL(t *testing.T) {
	p := &GeminiProvider{}
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		p.BuildURL("", "gemini-2.0-flash"))
	assert.Equal(t,
		"http://host/v1beta/models/m:generateContent",
		p.BuildURL("http://host/v1beta/", "m"))
}

func TestGeminiRequestBody(t *testing.T) {
	p := &GeminiProvider{}
	body, err := p.BuildRequestBody("gemini-2.0-flash", []llm.Message{
		{Role: "system", Content: "grade strictly"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "prior answer"},
	}, nil, 0)
	require.NoError(t, err)

	var req geminiRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "grade strictly", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Nil(t, req.GenerationConfig)
}

func TestGeminiParseResponse(t *testing.T) {
	p := &GeminiProvider{}
	resp, err := p.ParseResponse([]byte(`{
		"candidates": [{"content": {"parts": [{"text": "\\boxed{"}, {"text": "1}"}], "role": "model"}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10}
	}`), "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, `\boxed{1}`, resp.Content)
	assert.Equal(t, 10, resp.Usage.TotalTokens)

	_, err = p.ParseResponse([]byte(`{"candidates": []}`), "gemini-2.0-flash")
	assert.Error(t, err)
}

func TestHeaders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "g-test")

	req, _ := http.NewRequest(http.MethodPost, "http://x", nil)
	(&OpenAIProvider{}).SetHeaders(req)
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	req, _ = http.NewRequest(http.MethodPost, "http://x", nil)
	(&GeminiProvider{}).SetHeaders(req)
	assert.Equal(t, "g-test", req.Header.Get("x-goog-api-key"))
}
