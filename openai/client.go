package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"interview-assistant-service/config"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const assistantsPageSize = 100

// Assistant describes an assistant registered with the provider
type Assistant struct {
	ID           string
	Name         string
	Instructions string
	Model        string
}

// StatusError is returned when the provider answers a run request with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404, whichever transport produced it
func IsNotFound(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusNotFound
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusNotFound
	}
	var sdkErr *oai.Error
	if errors.As(err, &sdkErr) {
		return sdkErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Client talks to the OpenAI Assistants API. Assistant, thread and message
// calls go through go-openai; streaming runs go through openai-go, which
// decodes the run event stream.
type Client struct {
	api      *goopenai.Client
	sdk      oai.Client
	jsonMode bool
	limiter  *rate.Limiter
}

// NewClient creates a new OpenAI client. Requests carry no client-side timeout;
// callers bound them through the context.
func NewClient(cfg *config.Config) *Client {
	httpClient := &http.Client{}

	apiConfig := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
	apiConfig.BaseURL = cfg.OpenAIBaseURL
	apiConfig.HTTPClient = httpClient

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.OpenAIRequestsPerSecond > 0 {
		burst := int(cfg.OpenAIRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.OpenAIRequestsPerSecond), burst)
	}

	// Nothing is retried; a failed provider call fails the request.
	sdk := oai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithBaseURL(cfg.OpenAIBaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{
		api:      goopenai.NewClientWithConfig(apiConfig),
		sdk:      sdk,
		jsonMode: cfg.OpenAIJSONMode,
		limiter:  limiter,
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider pacing: %w", err)
	}
	return nil
}

// ListAssistants returns every assistant registered with the provider, newest first
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	limit := assistantsPageSize
	order := "desc"
	var after *string

	var assistants []Assistant
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.api.ListAssistants(ctx, &limit, &order, after, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list assistants: %w", err)
		}

		for _, a := range page.Assistants {
			assistants = append(assistants, fromAPIAssistant(a))
		}

		if !page.HasMore || page.LastID == nil || *page.LastID == "" {
			break
		}
		after = page.LastID
	}

	return assistants, nil
}

// CreateAssistant registers a new assistant with the given name, model and instructions
func (c *Client) CreateAssistant(ctx context.Context, spec Assistant) (Assistant, error) {
	if err := c.wait(ctx); err != nil {
		return Assistant{}, err
	}

	name := spec.Name
	instructions := spec.Instructions
	created, err := c.api.CreateAssistant(ctx, goopenai.AssistantRequest{
		Model:        spec.Model,
		Name:         &name,
		Instructions: &instructions,
	})
	if err != nil {
		return Assistant{}, fmt.Errorf("failed to create assistant: %w", err)
	}

	return fromAPIAssistant(created), nil
}

// CreateThread creates a new, empty conversation thread
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	thread, err := c.api.CreateThread(ctx, goopenai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}

	return thread.ID, nil
}

// AddUserMessage appends a user message to the thread
func (c *Client) AddUserMessage(ctx context.Context, threadID, content string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.api.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    "user",
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to add message to thread: %w", err)
	}

	return nil
}

// StreamRun starts a streaming run of the assistant on the thread and feeds
// every decoded event to onEvent until the run ends. An error returned by
// onEvent stops the stream and is returned as is.
func (c *Client) StreamRun(ctx context.Context, threadID, assistantID string, onEvent func(RunEvent) error) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	var opts []option.RequestOption
	if c.jsonMode {
		opts = append(opts, option.WithJSONSet("response_format", map[string]string{"type": "json_object"}))
	}

	stream := c.sdk.Beta.Threads.Runs.NewStreaming(ctx, threadID, oai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	}, opts...)

	return consumeRun(stream, onEvent)
}

// fromSDKError turns an SDK API error into a StatusError so callers see one
// error type for provider statuses.
func fromSDKError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return fmt.Errorf("run stream failed: %w", err)
}

func fromAPIAssistant(a goopenai.Assistant) Assistant {
	out := Assistant{ID: a.ID, Model: a.Model}
	if a.Name != nil {
		out.Name = *a.Name
	}
	if a.Instructions != nil {
		out.Instructions = *a.Instructions
	}
	return out
}
