package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
)

// ==========================
// Test Helper Functions
// ==========================

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "test-model",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

const rateLimitBody = `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`

// fakeProvider answers 429 for every bearer key listed in limited.
type fakeProvider struct {
	mu       sync.Mutex
	limited  map[string]bool
	seenKeys []string
	lastBody map[string]interface{}
	reply    string
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.seenKeys = append(f.seenKeys, key)
	f.lastBody = body
	limited := f.limited[key]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if limited {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(rateLimitBody))
		return
	}
	_, _ = w.Write([]byte(strings.Replace(completionBody, "%q", jsonQuote(f.reply), 1)))
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, srv *httptest.Server, keys ...string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKeys:        keys,
		BaseURL:        srv.URL + "/v1",
		Model:          "test-model",
		Temperature:    0.7,
		MaxTokens:      256,
		RequestTimeout: 5 * time.Second,
	}, srv.Client(), logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func userRequest(text string) Request {
	return Request{Messages: []Message{
		{Role: RoleSystem, Content: "You are a shopping assistant."},
		{Role: RoleUser, Content: text},
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestClient_Complete_Success(t *testing.T) {
	fp := &fakeProvider{reply: "Here are some GPUs."}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := newTestClient(t, srv, "key-a", "key-b")
	out, err := c.Complete(context.Background(), userRequest("show gpus"))
	require.NoError(t, err)

	assert.Equal(t, "Here are some GPUs.", out.Content)
	assert.Equal(t, 17, out.Usage.TotalTokens)
	assert.Equal(t, 0, out.KeyIndex)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{"key-a"}, fp.seenKeys)
	assert.Equal(t, "test-model", fp.lastBody["model"])
}

func TestClient_Complete_RotatesOnRateLimit(t *testing.T) {
	fp := &fakeProvider{reply: "ok", limited: map[string]bool{"key-a": true}}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	before := testutil.ToFloat64(metrics.LLMKeyRotations)

	c := newTestClient(t, srv, "key-a", "key-b", "key-c")
	out, err := c.Complete(context.Background(), userRequest("hello"))
	require.NoError(t, err)

	assert.Equal(t, 1, out.KeyIndex)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{"key-a", "key-b"}, fp.seenKeys)
	assert.Equal(t, 1, c.KeyIndex(), "the cursor stays on the working key")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMKeyRotations))
}

func TestClient_Complete_AllKeysExhausted(t *testing.T) {
	fp := &fakeProvider{limited: map[string]bool{"key-a": true, "key-b": true}}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := newTestClient(t, srv, "key-a", "key-b")
	_, err := c.Complete(context.Background(), userRequest("hello"))
	require.Error(t, err)

	assert.True(t, IsKeysExhausted(err))
	assert.Equal(t, apperrors.ErrCodeLLMKeysExhausted, apperrors.CodeOf(err))
	assert.Len(t, fp.seenKeys, 2, "each key is tried once")

	exhausted, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	last, ok := apperrors.AsStandardError(exhausted.Unwrap())
	require.True(t, ok, "the last 429 is kept as the cause")
	assert.Equal(t, apperrors.ErrCodeLLMRateLimited, last.Code)
	assert.Equal(t, 1, last.Metadata["keyIndex"])
}

func TestClient_Complete_NonRateLimitNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream failure", "type": "server_error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "key-a", "key-b")
	_, err := c.Complete(context.Background(), userRequest("hello"))
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, IsKeysExhausted(err))
	assert.Equal(t, apperrors.ErrCodeLLMRequestFailed, apperrors.CodeOf(err))
	assert.Equal(t, 0, c.KeyIndex())
}

func TestClient_Complete_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "key-a")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Complete(ctx, userRequest("hello"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCancelled, apperrors.CodeOf(err))
}

func TestClient_Complete_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{
		APIKeys:        []string{"key-a"},
		BaseURL:        srv.URL + "/v1",
		Model:          "test-model",
		RequestTimeout: 50 * time.Millisecond,
	}, srv.Client(), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), userRequest("hello"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLLMTimeout, apperrors.CodeOf(err))
}

func TestClient_Complete_VisionAndJSONMode(t *testing.T) {
	fp := &fakeProvider{reply: `{"productType":"gpu"}`}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := newTestClient(t, srv, "key-a")
	req := userRequest("identify this product")
	req.Model = "vision-model"
	req.JSONMode = true
	req.ImageURL = "data:image/png;base64,AAAA"

	_, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "vision-model", fp.lastBody["model"])
	format, ok := fp.lastBody["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])

	msgs := fp.lastBody["messages"].([]interface{})
	user := msgs[1].(map[string]interface{})
	parts, ok := user["content"].([]interface{})
	require.True(t, ok, "user message is sent as multi-part content")
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]interface{})["type"])
}

func TestClient_ConcurrentRotationMovesOnce(t *testing.T) {
	srv := httptest.NewServer(&fakeProvider{})
	defer srv.Close()

	c := newTestClient(t, srv, "key-a", "key-b", "key-c")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.rotate(0)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.KeyIndex())
}

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New(Config{}, nil, logger.NewNoOpLogger())
	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

// ==========================
// Response Parsing Tests
// ==========================

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around fence", "Sure!\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `["p1","p2"]`, ExtractJSON(`Matches: ["p1","p2"] as requested`, '[', ']'))
	assert.Equal(t, `{"x":{"y":1}}`, ExtractJSON("```json\n{\"x\":{\"y\":1}}\n```", '{', '}'))
	assert.Equal(t, "nothing here", ExtractJSON("nothing here", '[', ']'))
}
