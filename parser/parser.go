package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Transform is one named cleanup step applied to raw assistant text
type Transform struct {
	Name  string
	Apply func(string) string
}

var codeFence = regexp.MustCompile("(?i)```(?:json)?")

var (
	// StripCodeFences removes markdown code fence markers, with or without a json tag
	StripCodeFences = Transform{Name: "strip-code-fences", Apply: func(s string) string {
		return codeFence.ReplaceAllString(s, "")
	}}

	// StripEscapedNewlines removes literal backslash-n sequences
	StripEscapedNewlines = Transform{Name: "strip-escaped-newlines", Apply: func(s string) string {
		return strings.ReplaceAll(s, `\n`, "")
	}}

	// StripBackslashes removes every backslash character
	StripBackslashes = Transform{Name: "strip-backslashes", Apply: func(s string) string {
		return strings.ReplaceAll(s, `\`, "")
	}}

	TrimSpace = Transform{Name: "trim-space", Apply: strings.TrimSpace}
)

// Cleanup pipelines for the two kinds of assistant output
var (
	QuestionSteps = []Transform{StripEscapedNewlines, StripBackslashes, TrimSpace}
	FeedbackSteps = []Transform{StripCodeFences, StripEscapedNewlines, StripBackslashes, TrimSpace}
)

// ErrEmptyOutput is wrapped by ParseError when nothing is left to decode
var ErrEmptyOutput = errors.New("assistant output is empty")

// ParseError reports assistant output that is not JSON after cleanup
type ParseError struct {
	Cleaned string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse assistant output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Clean applies the steps to raw in order
func Clean(raw string, steps []Transform) string {
	for _, step := range steps {
		raw = step.Apply(raw)
	}
	return raw
}

// Sanitize cleans raw and decodes it as a single JSON value. Numbers are kept
// as json.Number so they are re-encoded exactly as the assistant wrote them.
func Sanitize(raw string, steps []Transform) (any, error) {
	cleaned := Clean(raw, steps)
	if cleaned == "" {
		return nil, &ParseError{Cleaned: cleaned, Err: ErrEmptyOutput}
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, &ParseError{Cleaned: cleaned, Err: err}
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, &ParseError{Cleaned: cleaned, Err: errors.New("unexpected data after JSON value")}
	}

	return value, nil
}

// SanitizeQuestions parses the output of a question-generation run
func SanitizeQuestions(raw string) (any, error) {
	return Sanitize(raw, QuestionSteps)
}

// SanitizeFeedback parses the output of a feedback run
func SanitizeFeedback(raw string) (any, error) {
	return Sanitize(raw, FeedbackSteps)
}
