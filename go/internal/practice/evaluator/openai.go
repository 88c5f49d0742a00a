package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/adaptivq/go/clients"
	"github.com/mcdev12/adaptivq/go/clients/openai_client"
	"github.com/mcdev12/adaptivq/go/internal/models"
)

const interviewerSystemPrompt = `You are an experienced interviewer grading a candidate's answer.
Reply with a single JSON object: {"rating": <integer 0-100>, "narrative": <string>,
"strengths": [<string>...], "improvements": [<string>...]}.
An empty answer means the candidate ran out of time; rate it 0 and coach them.`

// Completer is the slice of the chat client the evaluator needs.
type Completer interface {
	Complete(ctx context.Context, messages []openai_client.Message) (string, error)
}

// OpenAIEvaluator grades answers with a chat completions model.
type OpenAIEvaluator struct {
	client Completer
}

// NewOpenAIEvaluator wraps a chat client.
func NewOpenAIEvaluator(client Completer) *OpenAIEvaluator {
	return &OpenAIEvaluator{client: client}
}

func (e *OpenAIEvaluator) Evaluate(ctx context.Context, req Request) (models.Feedback, error) {
	messages := []openai_client.Message{
		{Role: "system", Content: interviewerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\nContext: %s\nAnswer: %s", req.Prompt, req.Context, req.Response)},
	}

	content, err := e.client.Complete(ctx, messages)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.Retryable() {
			return models.Feedback{}, Transient(err)
		}
		return models.Feedback{}, fmt.Errorf("chat completion: %w", err)
	}

	var fb models.Feedback
	if err := json.Unmarshal([]byte(content), &fb); err != nil {
		return models.Feedback{}, fmt.Errorf("decode feedback: %w", err)
	}
	return fb.ClampRating(), nil
}
