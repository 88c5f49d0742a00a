package practice

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/practice/session"
	"github.com/mcdev12/adaptivq/go/internal/questionbank"
	"github.com/mcdev12/adaptivq/go/internal/results"
	"github.com/mcdev12/adaptivq/go/internal/rpccodec"
)

const (
	// PracticeServiceName is the fully-qualified name of the practice service.
	PracticeServiceName = "practice.v1.PracticeService"

	StartSessionProcedure   = "/" + PracticeServiceName + "/StartSession"
	GetSessionProcedure     = "/" + PracticeServiceName + "/GetSession"
	UpdateResponseProcedure = "/" + PracticeServiceName + "/UpdateResponse"
	SubmitResponseProcedure = "/" + PracticeServiceName + "/SubmitResponse"
	NextQuestionProcedure   = "/" + PracticeServiceName + "/NextQuestion"
	EndSessionProcedure     = "/" + PracticeServiceName + "/EndSession"
	GetResultProcedure      = "/" + PracticeServiceName + "/GetResult"
)

// PracticeApp defines what the service layer needs from the practice application
type PracticeApp interface {
	StartSession(ctx context.Context, req StartSessionRequest) (session.Snapshot, error)
	GetSession(id uuid.UUID) (session.Snapshot, error)
	UpdateResponse(id uuid.UUID, text string) (session.Snapshot, error)
	SubmitResponse(id uuid.UUID) (session.Snapshot, error)
	NextQuestion(id uuid.UUID) (session.Snapshot, error)
	EndSession(id uuid.UUID) (session.Snapshot, error)
	GetResult(ctx context.Context, id uuid.UUID) (models.SessionResult, error)
}

type StartSessionMessage struct {
	Category    string            `json:"category"`
	Level       int               `json:"level"`
	UserID      string            `json:"user_id,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	QuestionIDs []string          `json:"question_ids,omitempty"`
	Questions   []models.Question `json:"questions,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type UpdateResponseMessage struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SessionView is the wire form of a session snapshot.
type SessionView struct {
	SessionID        string                `json:"session_id"`
	Status           models.SessionStatus  `json:"status"`
	Category         string                `json:"category,omitempty"`
	Level            int                   `json:"level,omitempty"`
	QuestionIndex    int                   `json:"question_index"`
	TotalQuestions   int                   `json:"total_questions"`
	Question         *models.Question      `json:"question,omitempty"`
	TimeRemainingSec int                   `json:"time_remaining_sec"`
	Display          string                `json:"display"`
	Response         string                `json:"response"`
	Feedback         *models.Feedback      `json:"feedback,omitempty"`
	Responses        map[string]string     `json:"responses"`
	Result           *models.SessionResult `json:"result,omitempty"`
}

type ResultView struct {
	Result        models.SessionResult `json:"result"`
	AverageRating float64              `json:"average_rating"`
}

// Service implements practice.v1.PracticeService over Connect.
type Service struct {
	app PracticeApp
}

func NewService(app PracticeApp) *Service {
	return &Service{app: app}
}

// Handler returns the mount path and handler for every procedure.
func (s *Service) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, s.StartSession, rpccodec.Option()))
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, s.GetSession, rpccodec.Option()))
	mux.Handle(UpdateResponseProcedure, connect.NewUnaryHandler(UpdateResponseProcedure, s.UpdateResponse, rpccodec.Option()))
	mux.Handle(SubmitResponseProcedure, connect.NewUnaryHandler(SubmitResponseProcedure, s.SubmitResponse, rpccodec.Option()))
	mux.Handle(NextQuestionProcedure, connect.NewUnaryHandler(NextQuestionProcedure, s.NextQuestion, rpccodec.Option()))
	mux.Handle(EndSessionProcedure, connect.NewUnaryHandler(EndSessionProcedure, s.EndSession, rpccodec.Option()))
	mux.Handle(GetResultProcedure, connect.NewUnaryHandler(GetResultProcedure, s.GetResult, rpccodec.Option()))
	return "/" + PracticeServiceName + "/", mux
}

// StartSession creates a session and starts its first question
func (s *Service) StartSession(ctx context.Context, req *connect.Request[StartSessionMessage]) (*connect.Response[SessionView], error) {
	snap, err := s.app.StartSession(ctx, StartSessionRequest{
		Category:    req.Msg.Category,
		Level:       req.Msg.Level,
		UserID:      req.Msg.UserID,
		Limit:       req.Msg.Limit,
		QuestionIDs: req.Msg.QuestionIDs,
		Questions:   req.Msg.Questions,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(snapshotToView(snap)), nil
}

// GetSession returns the current snapshot of a live session
func (s *Service) GetSession(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionView], error) {
	id, err := uuid.Parse(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	snap, err := s.app.GetSession(id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(snapshotToView(snap)), nil
}

// UpdateResponse replaces the response buffer
func (s *Service) UpdateResponse(_ context.Context, req *connect.Request[UpdateResponseMessage]) (*connect.Response[SessionView], error) {
	id, err := uuid.Parse(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	snap, err := s.app.UpdateResponse(id, req.Msg.Text)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(snapshotToView(snap)), nil
}

// SubmitResponse submits the buffer for evaluation
func (s *Service) SubmitResponse(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionView], error) {
	return s.command(req.Msg.SessionID, s.app.SubmitResponse)
}

// NextQuestion acknowledges feedback and advances
func (s *Service) NextQuestion(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionView], error) {
	return s.command(req.Msg.SessionID, s.app.NextQuestion)
}

// EndSession terminates the session early
func (s *Service) EndSession(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionView], error) {
	return s.command(req.Msg.SessionID, s.app.EndSession)
}

// GetResult loads the persisted result of a finished session
func (s *Service) GetResult(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ResultView], error) {
	id, err := uuid.Parse(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	result, err := s.app.GetResult(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ResultView{Result: result, AverageRating: result.AverageRating()}), nil
}

func (s *Service) command(rawID string, fn func(uuid.UUID) (session.Snapshot, error)) (*connect.Response[SessionView], error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	snap, err := fn(id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(snapshotToView(snap)), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, results.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, session.ErrEmptyResponse),
		errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, questionbank.ErrNoQuestions),
		errors.Is(err, questionbank.ErrUnknownQuestion):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, session.ErrSessionEnded), errors.Is(err, session.ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func snapshotToView(s session.Snapshot) *SessionView {
	return &SessionView{
		SessionID:        s.SessionID.String(),
		Status:           s.Status,
		Category:         s.Meta.Category,
		Level:            s.Meta.Level,
		QuestionIndex:    s.QuestionIndex,
		TotalQuestions:   s.TotalQuestions,
		Question:         s.Question,
		TimeRemainingSec: s.TimeRemainingSec,
		Display:          s.Display,
		Response:         s.Response,
		Feedback:         s.Feedback,
		Responses:        s.Responses,
		Result:           s.Result,
	}
}
