package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"sherpa/internal/config"
	"sherpa/internal/services"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel       = "openai/gpt-4o"
	defaultHTTPTimeout = 45 * time.Second
)

// Screenshot is one captured frame to judge. MIME defaults to image/png.
type Screenshot struct {
	Data []byte
	MIME string
}

// DataURL renders the screenshot as a base64 data URL for the vision API.
func (s Screenshot) DataURL() string {
	mime := strings.TrimSpace(s.MIME)
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// Judge decides whether a screenshot satisfies a step's finish criteria.
type Judge interface {
	Evaluate(ctx context.Context, shot Screenshot, criteria string) (bool, error)
}

// Client calls an OpenRouter-compatible chat completion API with vision
// input. Each Evaluate is a single attempt; callers that want retries drive
// them from outside.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	referer    string
	title      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes the judge client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the completion endpoint (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = base
		}
	}
}

// NewClient constructs a judge from config.
func NewClient(cfg config.Judge, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimSpace(cfg.BaseURL),
		model:   strings.TrimSpace(cfg.Model),
		referer: strings.TrimSpace(cfg.Referer),
		title:   strings.TrimSpace(cfg.Title),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.model == "" {
		client.model = defaultModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.timeout}
	}
	return client
}

// Evaluate sends the screenshot and criteria to the model and parses a strict
// YES or NO verdict. Anything else from the model is a judgment error.
func (c *Client) Evaluate(ctx context.Context, shot Screenshot, criteria string) (bool, error) {
	if c.apiKey == "" {
		return false, services.Mark(services.ErrConfiguration, "judge api key is not set")
	}
	if len(shot.Data) == 0 {
		return false, services.Mark(services.ErrValidation, "screenshot is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: DeciderPrompt}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Finish criteria: " + criteria},
				{Type: "image_url", ImageURL: &imageURL{URL: shot.DataURL()}},
			}},
		},
		Temperature: 0,
		MaxTokens:   4,
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return false, services.Wrap(services.ErrJudgment, err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return false, services.Wrap(services.ErrJudgment, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if classified := services.Classify(err); classified != err {
			return false, classified
		}
		if ctx.Err() != nil {
			return false, services.Wrap(services.ErrTimeout, err, "judge call")
		}
		return false, services.Wrap(services.ErrJudgment, err, "judge call")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, services.Wrap(services.ErrJudgment, err, "read response")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, services.Mark(services.ErrJudgment, "judge http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return false, services.Wrap(services.ErrJudgment, err, "decode response")
	}
	if completion.Error != nil {
		return false, services.Mark(services.ErrJudgment, "judge api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return false, services.Mark(services.ErrJudgment, "judge returned no choices")
	}
	return parseVerdict(completion.Choices[0].Message.Content)
}

// parseVerdict accepts exactly YES or NO, case-insensitively, with
// surrounding whitespace and trailing punctuation tolerated.
func parseVerdict(content string) (bool, error) {
	verdict := strings.ToUpper(strings.TrimSpace(content))
	verdict = strings.TrimRight(verdict, ".!")
	switch verdict {
	case "YES":
		return true, nil
	case "NO":
		return false, nil
	case "":
		return false, services.Mark(services.ErrJudgment, "judge returned empty content")
	default:
		return false, services.Mark(services.ErrJudgment, "judge returned unexpected verdict %q", strings.TrimSpace(content))
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
