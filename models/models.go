package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Field is a request value that may arrive as any JSON scalar. Numbers and
// booleans keep their literal text; falsy values (empty string, 0, false,
// null) decode to "" so a required check rejects them.
type Field string

func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty value")
	}

	switch data[0] {
	case 'n', 'f':
		*f = ""
		return nil
	case 't':
		*f = "true"
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	case '{', '[':
		return errors.New("expected a string, number or boolean")
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, err := n.Float64(); err == nil && v == 0 {
		*f = ""
		return nil
	}
	*f = Field(n.String())
	return nil
}

// InterviewRequest asks for interview questions tailored to a candidate
type InterviewRequest struct {
	Level     Field `json:"level" binding:"required"`
	Language  Field `json:"language" binding:"required"`
	Specialty Field `json:"specialty" binding:"required"`
}

// FeedbackRequest carries candidate answers in whatever shape the client sends
type FeedbackRequest struct {
	Answers json.RawMessage `json:"answers"`
}

// ErrorResponse is the body of every JSON error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
