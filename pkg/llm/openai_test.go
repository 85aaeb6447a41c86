package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIChat(t *testing.T) {
	var gotReq chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hello back"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o").WithEndpoint(srv.URL)
	temp := 0.2
	out, err := c.Chat(context.Background(), Request{
		System:      "be brief",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens:   100,
		Temperature: &temp,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello back", out.Text)
	assert.Equal(t, 12, out.InputTokens)
	assert.Equal(t, 4, out.OutputTokens)
	assert.Equal(t, 16, out.TotalTokens())

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.NotNil(t, gotReq.Temperature)
	assert.Equal(t, 0.2, *gotReq.Temperature)
}

func TestOpenAIChat_ImageMessage(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"seen"}}],"usage":{}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "").WithEndpoint(srv.URL)
	_, err := c.Chat(context.Background(), Request{
		Messages: []Message{{
			Role:    RoleUser,
			Content: "what is on screen?",
			Images:  []ImageAttachment{{MediaType: "image/png", Data: "aGk="}},
		}},
		MaxTokens: 10,
	})
	require.NoError(t, err)

	msgs := raw["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,aGk=", img["image_url"].(map[string]any)["url"])
}

func TestOpenAIChat_ErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "").WithEndpoint(srv.URL)
	_, err := c.Chat(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "x"}},
		MaxTokens: 10,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429", "status code must survive into the error text")
}

func TestOpenAIChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "").WithEndpoint(srv.URL)
	_, err := c.Chat(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "x"}},
		MaxTokens: 10,
	})

	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	a, err := New(ProviderAnthropic, "k", "")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", a.Name())
	assert.True(t, a.SupportsVision())

	o, err := New(ProviderOpenAI, "k", "custom-model")
	require.NoError(t, err)
	assert.Equal(t, "openai", o.Name())

	_, err = New("cohere", "k", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
