package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"interview-assistant-service/interview"
	"interview-assistant-service/middleware"
	"interview-assistant-service/models"
	"interview-assistant-service/parser"
	"interview-assistant-service/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const ServiceName = "interview-assistant-service"

const (
	msgMissingFields   = "Missing required fields"
	msgInvalidRequest  = "Invalid request format"
	msgParseQuestions  = "Failed to parse questions."
	msgParseFeedback   = "Failed to parse feedback."
	msgTimeout         = "The assistant did not respond in time."
	msgGenericFailure  = "An error occurred while processing your request."
	maxRequestBodySize = 1 << 20
)

// Interviewer is the assistant-backed work behind the endpoints
type Interviewer interface {
	Questions(ctx context.Context, req models.InterviewRequest) (any, error)
	Feedback(ctx context.Context, answers json.RawMessage) (any, error)
}

type InterviewHandler struct {
	interviewer Interviewer
}

func NewInterviewHandler(interviewer Interviewer) *InterviewHandler {
	return &InterviewHandler{interviewer: interviewer}
}

// HealthCheck returns service health status
func (h *InterviewHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
		"version": version.BuildVersion,
	})
}

// Version returns build information
func (h *InterviewHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get(ServiceName))
}

// Interview generates interview questions for the candidate profile in the body
func (h *InterviewHandler) Interview(c *gin.Context) {
	var req models.InterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithField("request_id", middleware.GetRequestID(c)).Warnf("Invalid interview request: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgMissingFields})
		return
	}

	questions, err := h.interviewer.Questions(c.Request.Context(), req)
	if err != nil {
		h.fail(c, interview.EndpointInterview, msgParseQuestions, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// Feedback reviews the answers in the body. The body is not validated beyond
// being JSON; an empty body counts as {}, and answers are only taken from an
// object body. Any other JSON value is reviewed as null answers.
func (h *InterviewHandler) Feedback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodySize))
	if err != nil {
		log.WithField("request_id", middleware.GetRequestID(c)).Warnf("Failed to read feedback body: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidRequest})
		return
	}

	var req models.FeedbackRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			log.WithField("request_id", middleware.GetRequestID(c)).Warn("Invalid feedback request: body is not JSON")
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidRequest})
			return
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) == nil {
			req.Answers = fields["answers"]
		}
	}

	feedback, err := h.interviewer.Feedback(c.Request.Context(), req.Answers)
	if err != nil {
		h.fail(c, interview.EndpointFeedback, msgParseFeedback, err)
		return
	}

	c.JSON(http.StatusOK, feedback)
}

// fail logs the cause and answers with a fixed message for its kind
func (h *InterviewHandler) fail(c *gin.Context, endpoint, parseMessage string, err error) {
	fields := log.Fields{
		"request_id": middleware.GetRequestID(c),
		"endpoint":   endpoint,
		"result":     interview.Result(err),
	}

	var parseErr *parser.ParseError
	switch {
	case errors.As(err, &parseErr):
		fields["cleaned_output"] = truncate(parseErr.Cleaned, 512)
		log.WithFields(fields).WithError(err).Error("assistant.parse_failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: parseMessage})
	case errors.Is(err, interview.ErrTimeout):
		log.WithFields(fields).WithError(err).Error("assistant.timeout")
		c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{Error: msgTimeout})
	default:
		log.WithFields(fields).WithError(err).Error("assistant.request_failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgGenericFailure})
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
