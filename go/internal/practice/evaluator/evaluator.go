package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"connectrpc.com/connect"
	"github.com/mcdev12/adaptivq/go/internal/models"
)

// ErrEvaluationFailure marks an evaluation that could not produce feedback.
var ErrEvaluationFailure = errors.New("evaluation failed")

// Request is everything an evaluator sees about one answer.
type Request struct {
	QuestionID string `json:"question_id"`
	Prompt     string `json:"prompt"`
	Context    string `json:"context"`
	Response   string `json:"response"`
}

// Evaluator turns a response into Feedback. Implementations may block for an
// unspecified time and must honour ctx cancellation.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (models.Feedback, error)
}

// Func adapts a plain function to Evaluator.
type Func func(ctx context.Context, req Request) (models.Feedback, error)

func (f Func) Evaluate(ctx context.Context, req Request) (models.Feedback, error) {
	return f(ctx, req)
}

// TransientError wraps a failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Dial, read and write failures on the socket: refused, reset, unreachable.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		switch connectErr.Code() {
		case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeResourceExhausted, connect.CodeAborted:
			return true
		}
	}
	return false
}
