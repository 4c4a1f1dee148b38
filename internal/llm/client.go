package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Chat call failures the caller can tell apart. ErrAuthCanceled means
// the remote provider reported that the user backed out of its auth
// flow, which deserves a friendlier message than a transport failure.
var (
	ErrRemote       = errors.New("remote chat call failed")
	ErrAuthCanceled = errors.New("chat provider authentication was canceled")
)

type Client struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ResultKind discriminates the two response shapes the provider emits.
type ResultKind string

const (
	KindPlain        ResultKind = "plain"
	KindWithMetadata ResultKind = "withMetadata"
)

// Result is the single normalized shape callers see. The provider
// sometimes returns a bare JSON string, sometimes an object with text
// plus metadata; that difference is resolved here and nowhere else.
type Result struct {
	Kind  ResultKind
	Text  string
	Model string
}

type chatRequest struct {
	Model   string `json:"model,omitempty"`
	Message string `json:"message"`
}

type chatWithMetadata struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one prompt and returns one normalized response. No
// retries: a transport failure surfaces directly to the caller.
func (c *Client) Chat(ctx context.Context, prompt string) (*Result, error) {
	b, _ := json.Marshal(chatRequest{Model: c.Model, Message: prompt})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if decErr := json.NewDecoder(resp.Body).Decode(&raw); decErr != nil && resp.StatusCode < 400 {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemote, decErr)
	}

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		_ = json.Unmarshal(raw, &env)
		if env.Error.Code == "auth_canceled" || strings.Contains(strings.ToLower(env.Error.Message), "cancel") {
			return nil, fmt.Errorf("%w (status %d)", ErrAuthCanceled, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w (status %d): %s", ErrRemote, resp.StatusCode, env.Error.Message)
	}

	res, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// normalize resolves the provider's duck-typed payload into a Result.
func normalize(raw json.RawMessage) (*Result, error) {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		if strings.TrimSpace(plain) == "" {
			return nil, fmt.Errorf("%w: empty response", ErrRemote)
		}
		return &Result{Kind: KindPlain, Text: plain}, nil
	}

	var meta chatWithMetadata
	if err := json.Unmarshal(raw, &meta); err == nil && strings.TrimSpace(meta.Text) != "" {
		return &Result{Kind: KindWithMetadata, Text: meta.Text, Model: meta.Model}, nil
	}

	return nil, fmt.Errorf("%w: response is not text", ErrRemote)
}
