package interview

import (
	"bytes"
	"encoding/json"
	"fmt"

	"interview-assistant-service/models"
)

const (
	questionCount = 30

	questionTemplate = "Я %s разработчик, программирую на %s. Моя специальность %s. " +
		"Сгенерируйте %d вопросов для собеседования, учитывая мой уровень, мою специальность и язык. " +
		"Ответ верните в формате JSON."

	feedbackTemplate = "Вот мои ответы на вопросы собеседования: %s. " +
		"Проанализируйте их и укажите мои сильные стороны, области для улучшения и неправильные ответы. " +
		"Ответ верните в формате JSON."
)

// QuestionPrompt builds the user message asking for interview questions
func QuestionPrompt(req models.InterviewRequest) string {
	return fmt.Sprintf(questionTemplate, req.Level, req.Language, req.Specialty, questionCount)
}

// FeedbackPrompt builds the user message carrying the candidate's answers.
// Missing answers are sent as null.
func FeedbackPrompt(answers json.RawMessage) string {
	return fmt.Sprintf(feedbackTemplate, encodeAnswers(answers))
}

func encodeAnswers(answers json.RawMessage) string {
	trimmed := bytes.TrimSpace(answers)
	if len(trimmed) == 0 {
		return "null"
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
