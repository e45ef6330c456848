package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go/v3"
)

// Run stream event names as sent by the provider
const (
	eventMessageCompleted  = "thread.message.completed"
	eventRunCompleted      = "thread.run.completed"
	eventRunFailed         = "thread.run.failed"
	eventRunCancelled      = "thread.run.cancelled"
	eventRunExpired        = "thread.run.expired"
	eventRunIncomplete     = "thread.run.incomplete"
	eventRunRequiresAction = "thread.run.requires_action"
	eventError             = "error"
)

// ErrIncompleteStream means the run stream closed before the run finished
var ErrIncompleteStream = errors.New("run stream ended before the run finished")

// RunEventType identifies the events a run stream hands to its consumer
type RunEventType int

const (
	// EventMessageCompleted carries the text of one completed assistant message
	EventMessageCompleted RunEventType = iota
	// EventRunCompleted marks the successful end of the run
	EventRunCompleted
)

// RunEvent is one decoded event of a streaming run
type RunEvent struct {
	Type      RunEventType
	MessageID string
	Texts     []string
}

// RunError reports a run that ended without completing
type RunError struct {
	Status  string
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("run %s", e.Status)
	}
	return fmt.Sprintf("run %s: %s - %s", e.Status, e.Code, e.Message)
}

type streamMessage struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

type streamRun struct {
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
}

type streamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunStream is the event iterator returned by the SDK for a streaming run
type RunStream interface {
	Next() bool
	Current() oai.AssistantStreamEventUnion
	Err() error
	Close() error
}

// consumeRun feeds the events of stream to onEvent. It returns nil only when
// the run completed; an error returned by onEvent stops the stream as is.
func consumeRun(stream RunStream, onEvent func(RunEvent) error) error {
	defer stream.Close()

	completed := false
	for stream.Next() {
		event, data := eventPayload(stream.Current())

		evt, emit, err := decodeRunEvent(event, data)
		if err != nil {
			return err
		}
		if !emit {
			continue
		}
		if evt.Type == EventRunCompleted {
			completed = true
		}
		if err := onEvent(evt); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fromSDKError(err)
	}
	if !completed {
		return ErrIncompleteStream
	}
	return nil
}

// eventPayload splits an SDK event into its name and the raw JSON of its data.
// Thread events arrive wrapped as {"event":...,"data":...}; an error event
// carries only the error object.
func eventPayload(evt oai.AssistantStreamEventUnion) (string, []byte) {
	raw := []byte(evt.RawJSON())
	event := string(evt.Event)
	if event == "" {
		return eventError, raw
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
		return event, raw
	}
	return event, envelope.Data
}

// decodeRunEvent maps one provider event to what the consumer sees. emit is
// false for events the consumer does not care about; an error ends the run.
func decodeRunEvent(event string, data []byte) (evt RunEvent, emit bool, err error) {
	switch event {
	case eventMessageCompleted:
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return RunEvent{}, false, fmt.Errorf("failed to parse %s event: %w", event, err)
		}
		evt = RunEvent{Type: EventMessageCompleted, MessageID: msg.ID}
		for _, content := range msg.Content {
			if content.Type == "text" && content.Text != nil {
				evt.Texts = append(evt.Texts, content.Text.Value)
			}
		}
		return evt, len(evt.Texts) > 0, nil

	case eventRunCompleted:
		return RunEvent{Type: EventRunCompleted}, true, nil

	case eventRunFailed, eventRunCancelled, eventRunExpired, eventRunIncomplete, eventRunRequiresAction:
		var run streamRun
		_ = json.Unmarshal(data, &run)
		runErr := &RunError{Status: strings.TrimPrefix(event, "thread.run.")}
		if run.LastError != nil {
			runErr.Code = run.LastError.Code
			runErr.Message = run.LastError.Message
		} else if run.IncompleteDetails != nil {
			runErr.Message = run.IncompleteDetails.Reason
		}
		return RunEvent{}, false, runErr

	case eventError:
		var se streamError
		_ = json.Unmarshal(data, &se)
		runErr := &RunError{Status: "errored", Code: se.Code, Message: se.Message}
		if runErr.Message == "" {
			runErr.Message = string(data)
		}
		return RunEvent{}, false, runErr
	}

	return RunEvent{}, false, nil
}
