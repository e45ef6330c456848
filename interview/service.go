package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"interview-assistant-service/assistant"
	"interview-assistant-service/metrics"
	"interview-assistant-service/models"
	"interview-assistant-service/openai"
	"interview-assistant-service/parser"

	"github.com/apex/log"
)

const (
	EndpointInterview = "interview"
	EndpointFeedback  = "feedback"
)

var (
	// ErrNoOutput is returned when a run completes without any text
	ErrNoOutput = errors.New("assistant run produced no text output")

	// ErrTimeout is returned when the provider pipeline exceeds the run timeout
	ErrTimeout = errors.New("assistant run timed out")
)

// Provider is the part of the provider API a conversation needs
type Provider interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, content string) error
	StreamRun(ctx context.Context, threadID, assistantID string, onEvent func(openai.RunEvent) error) error
}

// Service turns interview and feedback requests into single-message
// conversations with the assistant and parses what it answers.
type Service struct {
	provider   Provider
	resolver   assistant.Resolver
	runTimeout time.Duration
}

// NewService creates a new Service. A zero runTimeout leaves the pipeline
// bounded only by the caller's context.
func NewService(provider Provider, resolver assistant.Resolver, runTimeout time.Duration) *Service {
	return &Service{
		provider:   provider,
		resolver:   resolver,
		runTimeout: runTimeout,
	}
}

// Questions asks the assistant for interview questions matching req
func (s *Service) Questions(ctx context.Context, req models.InterviewRequest) (any, error) {
	value, err := s.ask(ctx, EndpointInterview, QuestionPrompt(req), parser.SanitizeQuestions)
	metrics.RequestsTotal.WithLabelValues(EndpointInterview, Result(err)).Inc()
	return value, err
}

// Feedback asks the assistant to review the candidate's answers
func (s *Service) Feedback(ctx context.Context, answers json.RawMessage) (any, error) {
	value, err := s.ask(ctx, EndpointFeedback, FeedbackPrompt(answers), parser.SanitizeFeedback)
	metrics.RequestsTotal.WithLabelValues(EndpointFeedback, Result(err)).Inc()
	return value, err
}

func (s *Service) ask(ctx context.Context, endpoint, prompt string, sanitize func(string) (any, error)) (any, error) {
	raw, err := s.run(ctx, endpoint, prompt)
	if err != nil {
		return nil, err
	}
	return sanitize(raw)
}

// run executes the whole conversation for one prompt and returns the first
// completed text segment.
func (s *Service) run(ctx context.Context, endpoint, prompt string) (string, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.converse(ctx, endpoint, prompt)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	metrics.RunDurationSeconds.WithLabelValues(endpoint, Result(err)).Observe(time.Since(start).Seconds())

	return raw, err
}

func (s *Service) converse(ctx context.Context, endpoint, prompt string) (string, error) {
	assistantID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}

	threadID, err := s.provider.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	metrics.ThreadsCreatedTotal.Inc()

	if err := s.provider.AddUserMessage(ctx, threadID, prompt); err != nil {
		return "", err
	}

	var segments []string
	err = s.provider.StreamRun(ctx, threadID, assistantID, func(evt openai.RunEvent) error {
		if evt.Type == openai.EventMessageCompleted {
			segments = append(segments, evt.Texts...)
		}
		return nil
	})
	if err != nil {
		if openai.IsNotFound(err) {
			s.resolver.Invalidate()
		}
		return "", fmt.Errorf("run on thread %s: %w", threadID, err)
	}

	if len(segments) == 0 {
		return "", ErrNoOutput
	}
	if len(segments) > 1 {
		log.WithFields(log.Fields{
			"endpoint":  endpoint,
			"thread_id": threadID,
			"segments":  len(segments),
		}).Debug("run.extra_segments_ignored")
	}

	return segments[0], nil
}

// Result maps an outcome to the label used in metrics and logs
func Result(err error) string {
	var parseErr *parser.ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.Is(err, ErrNoOutput):
		return "no_output"
	case errors.Is(err, assistant.ErrAssistantUnavailable):
		return "assistant_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
