package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"interview-assistant-service/assistant"
	"interview-assistant-service/models"
	"interview-assistant-service/openai"
	"interview-assistant-service/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	threads   int
	messages  []string
	runs      []string
	segments  []string
	threadErr error
	runErr    error
	block     bool
}

func (f *fakeProvider) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadErr != nil {
		return "", f.threadErr
	}
	f.threads++
	return "thread_1", nil
}

func (f *fakeProvider) AddUserMessage(ctx context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeProvider) StreamRun(ctx context.Context, threadID, assistantID string, onEvent func(openai.RunEvent) error) error {
	f.mu.Lock()
	f.runs = append(f.runs, assistantID)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.runErr != nil {
		return f.runErr
	}
	for i, text := range f.segments {
		evt := openai.RunEvent{Type: openai.EventMessageCompleted, MessageID: "msg", Texts: []string{text}}
		if i == 0 {
			evt.MessageID = "msg_first"
		}
		if err := onEvent(evt); err != nil {
			return err
		}
	}
	return onEvent(openai.RunEvent{Type: openai.EventRunCompleted})
}

type fakeResolver struct {
	id          string
	err         error
	invalidated int
}

func (r *fakeResolver) Resolve(ctx context.Context) (string, error) {
	return r.id, r.err
}

func (r *fakeResolver) Invalidate() {
	r.invalidated++
}

var validRequest = models.InterviewRequest{Level: "junior", Language: "Go", Specialty: "backend"}

func TestQuestions_OneThreadOneRun(t *testing.T) {
	provider := &fakeProvider{segments: []string{`{\n\"questions\": [{\"number\": 1, \"question\": \"Что такое горутина?\"}]\n}`}}
	resolver := &fakeResolver{id: "asst_1"}
	service := NewService(provider, resolver, time.Minute)

	value, err := service.Questions(context.Background(), validRequest)
	require.NoError(t, err)

	encoded, err := json.Marshal(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions":[{"number":1,"question":"Что такое горутина?"}]}`, string(encoded))

	assert.Equal(t, 1, provider.threads)
	assert.Equal(t, []string{"asst_1"}, provider.runs)
	require.Len(t, provider.messages, 1)
	assert.Equal(t, QuestionPrompt(validRequest), provider.messages[0])
}

func TestQuestions_UsesFirstSegmentOnly(t *testing.T) {
	provider := &fakeProvider{segments: []string{`{"first":true}`, `not json at all`}}
	service := NewService(provider, &fakeResolver{id: "asst_1"}, time.Minute)

	value, err := service.Questions(context.Background(), validRequest)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"first": true}, value)
}

func TestQuestions_NoOutput(t *testing.T) {
	provider := &fakeProvider{}
	service := NewService(provider, &fakeResolver{id: "asst_1"}, time.Minute)

	value, err := service.Questions(context.Background(), validRequest)
	assert.Nil(t, value)
	assert.ErrorIs(t, err, ErrNoOutput)
	assert.Equal(t, "no_output", Result(err))
}

func TestQuestions_ParseError(t *testing.T) {
	provider := &fakeProvider{segments: []string{"Sorry, I cannot help with that."}}
	service := NewService(provider, &fakeResolver{id: "asst_1"}, time.Minute)

	_, err := service.Questions(context.Background(), validRequest)

	var parseErr *parser.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "parse_error", Result(err))
}

func TestQuestions_Timeout(t *testing.T) {
	provider := &fakeProvider{block: true}
	service := NewService(provider, &fakeResolver{id: "asst_1"}, 20*time.Millisecond)

	start := time.Now()
	_, err := service.Questions(context.Background(), validRequest)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestQuestions_ResolverFailureSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	resolver := &fakeResolver{err: assistant.ErrAssistantUnavailable}
	service := NewService(provider, resolver, time.Minute)

	_, err := service.Questions(context.Background(), validRequest)
	assert.ErrorIs(t, err, assistant.ErrAssistantUnavailable)
	assert.Equal(t, 0, provider.threads)
	assert.Empty(t, provider.runs)
}

func TestQuestions_StaleAssistantInvalidated(t *testing.T) {
	provider := &fakeProvider{runErr: &openai.StatusError{StatusCode: http.StatusNotFound, Body: "No assistant found"}}
	resolver := &fakeResolver{id: "asst_gone"}
	service := NewService(provider, resolver, time.Minute)

	_, err := service.Questions(context.Background(), validRequest)
	require.Error(t, err)
	assert.Equal(t, 1, resolver.invalidated)

	provider.runErr = &openai.RunError{Status: "failed", Code: "server_error", Message: "boom"}
	_, err = service.Questions(context.Background(), validRequest)
	require.Error(t, err)
	assert.Equal(t, 1, resolver.invalidated)
	assert.Equal(t, "error", Result(err))
}

func TestFeedback(t *testing.T) {
	provider := &fakeProvider{segments: []string{"```json\n{\"feedback\":{\"strengths\":[\"ясно\"],\"areas_for_improvement\":[],\"incorrect_answers\":[]}}\n```"}}
	service := NewService(provider, &fakeResolver{id: "asst_1"}, time.Minute)

	value, err := service.Feedback(context.Background(), json.RawMessage(`{ "1": "goroutine is a lightweight thread" }`))
	require.NoError(t, err)

	encoded, err := json.Marshal(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"feedback":{"strengths":["ясно"],"areas_for_improvement":[],"incorrect_answers":[]}}`, string(encoded))

	require.Len(t, provider.messages, 1)
	assert.Contains(t, provider.messages[0], `{"1":"goroutine is a lightweight thread"}`)
}

func TestPrompts(t *testing.T) {
	prompt := QuestionPrompt(validRequest)
	assert.Contains(t, prompt, "Я junior разработчик")
	assert.Contains(t, prompt, "программирую на Go")
	assert.Contains(t, prompt, "Моя специальность backend")
	assert.Contains(t, prompt, "30 вопросов")
	assert.Contains(t, prompt, "JSON")

	assert.True(t, strings.Contains(FeedbackPrompt(nil), ": null."))
	assert.True(t, strings.Contains(FeedbackPrompt(json.RawMessage("  ")), ": null."))
	assert.Contains(t, FeedbackPrompt(json.RawMessage(`[1, 2]`)), "[1,2]")
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "timeout", Result(ErrTimeout))
	assert.Equal(t, "assistant_unavailable", Result(assistant.ErrAssistantUnavailable))
	assert.Equal(t, "canceled", Result(context.Canceled))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
