package evaluator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/rpccodec"
	"github.com/rs/zerolog/log"
)

const (
	// EvaluatorServiceName is the fully-qualified name of the evaluator service.
	EvaluatorServiceName = "practice.v1.EvaluatorService"
	// EvaluateProcedure is the route for EvaluatorService.Evaluate.
	EvaluateProcedure = "/" + EvaluatorServiceName + "/Evaluate"
)

// EvaluateResponse is the wire form of a Feedback.
type EvaluateResponse struct {
	Feedback models.Feedback `json:"feedback"`
}

// ConnectClient calls a remote EvaluatorService over Connect.
type ConnectClient struct {
	evaluate *connect.Client[Request, EvaluateResponse]
}

// NewConnectClient dials baseURL lazily; nothing happens until Evaluate.
func NewConnectClient(httpClient connect.HTTPClient, baseURL string) *ConnectClient {
	return &ConnectClient{
		evaluate: connect.NewClient[Request, EvaluateResponse](
			httpClient,
			strings.TrimRight(baseURL, "/")+EvaluateProcedure,
			rpccodec.Option(),
		),
	}
}

func (c *ConnectClient) Evaluate(ctx context.Context, req Request) (models.Feedback, error) {
	resp, err := c.evaluate.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return models.Feedback{}, fmt.Errorf("remote evaluate: %w", err)
	}
	return resp.Msg.Feedback.ClampRating(), nil
}

// NewHandler exposes ev as an EvaluatorService so other instances can use it.
func NewHandler(ev Evaluator) (string, http.Handler) {
	handler := connect.NewUnaryHandler(
		EvaluateProcedure,
		func(ctx context.Context, req *connect.Request[Request]) (*connect.Response[EvaluateResponse], error) {
			fb, err := ev.Evaluate(ctx, *req.Msg)
			if err != nil {
				log.Error().Err(err).Str("question_id", req.Msg.QuestionID).Msg("evaluate handler failed")
				if IsTransient(err) {
					return nil, connect.NewError(connect.CodeUnavailable, err)
				}
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(&EvaluateResponse{Feedback: fb}), nil
		},
		rpccodec.Option(),
	)
	return "/" + EvaluatorServiceName + "/", handler
}
