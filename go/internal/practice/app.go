package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/practice/evaluator"
	"github.com/mcdev12/adaptivq/go/internal/practice/events"
	"github.com/mcdev12/adaptivq/go/internal/practice/session"
	"github.com/mcdev12/adaptivq/go/internal/questionbank"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("session not found")

const saveTimeout = 10 * time.Second

// QuestionSource defines what the app needs from the question bank
type QuestionSource interface {
	Questions(ctx context.Context, filter questionbank.Filter) ([]models.Question, error)
}

// ResultStore defines what the app needs from the results store
type ResultStore interface {
	Save(ctx context.Context, result models.SessionResult) error
	Get(ctx context.Context, sessionID uuid.UUID) (models.SessionResult, error)
}

// StartSessionRequest selects the questions for a new session. Questions, when
// set, are used as given; otherwise the bank is queried.
type StartSessionRequest struct {
	Category    string
	Level       int
	UserID      string
	Limit       int
	QuestionIDs []string
	Questions   []models.Question
}

// App keeps the live sessions of this process.
type App struct {
	source    QuestionSource
	evaluator evaluator.Evaluator
	publisher events.Publisher
	results   ResultStore
	clock     clockwork.Clock

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Controller
	pending  sync.WaitGroup
}

// Option configures an App.
type Option func(*App)

func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithResultStore persists every completed session.
func WithResultStore(s ResultStore) Option {
	return func(a *App) { a.results = s }
}

func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

// NewApp creates a new practice App
func NewApp(source QuestionSource, ev evaluator.Evaluator, opts ...Option) *App {
	a := &App{
		source:    source,
		evaluator: ev,
		publisher: events.NoopPublisher{},
		clock:     clockwork.NewRealClock(),
		sessions:  make(map[uuid.UUID]*session.Controller),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartSession builds and registers a new session; its first question is live
// when this returns.
func (a *App) StartSession(ctx context.Context, req StartSessionRequest) (session.Snapshot, error) {
	questions := req.Questions
	if len(questions) == 0 {
		if a.source == nil {
			return session.Snapshot{}, fmt.Errorf("%w: no question source configured", session.ErrInvalidSession)
		}
		var err error
		questions, err = a.source.Questions(ctx, questionbank.Filter{
			Category: req.Category,
			Level:    req.Level,
			IDs:      req.QuestionIDs,
			Limit:    req.Limit,
		})
		if err != nil {
			return session.Snapshot{}, fmt.Errorf("failed to load questions: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending.Add(1)
	ctrl, err := session.New(session.Config{
		Meta: models.SessionMeta{
			Category: req.Category,
			Level:    req.Level,
			UserID:   req.UserID,
		},
		Questions:  questions,
		Evaluator:  a.evaluator,
		Clock:      a.clock,
		Publisher:  a.publisher,
		OnComplete: a.complete,
	})
	if err != nil {
		a.pending.Done()
		return session.Snapshot{}, err
	}
	a.sessions[ctrl.ID()] = ctrl

	return ctrl.Snapshot(), nil
}

// complete persists a finished session and drops it from the registry.
func (a *App) complete(result models.SessionResult) {
	defer a.pending.Done()

	if a.results != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := a.results.Save(ctx, result); err != nil {
			log.Error().
				Err(err).
				Str("session_id", result.SessionID.String()).
				Msg("failed to save session result")
		}
	}

	a.mu.Lock()
	ctrl, ok := a.sessions[result.SessionID]
	delete(a.sessions, result.SessionID)
	a.mu.Unlock()
	if ok {
		ctrl.Close()
	}

	log.Info().
		Str("session_id", result.SessionID.String()).
		Str("reason", string(result.Reason)).
		Float64("average_rating", result.AverageRating()).
		Msg("session completed")
}

func (a *App) get(id uuid.UUID) (*session.Controller, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ctrl, ok := a.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ctrl, nil
}

// Exists reports whether id names a live session.
func (a *App) Exists(id uuid.UUID) bool {
	_, err := a.get(id)
	return err == nil
}

// ActiveSessions returns the number of live sessions.
func (a *App) ActiveSessions() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *App) GetSession(id uuid.UUID) (session.Snapshot, error) {
	ctrl, err := a.get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

func (a *App) UpdateResponse(id uuid.UUID, text string) (session.Snapshot, error) {
	return a.apply(id, func(c *session.Controller) error { return c.UpdateResponse(text) })
}

func (a *App) SubmitResponse(id uuid.UUID) (session.Snapshot, error) {
	return a.apply(id, (*session.Controller).Submit)
}

func (a *App) NextQuestion(id uuid.UUID) (session.Snapshot, error) {
	return a.apply(id, (*session.Controller).Next)
}

func (a *App) EndSession(id uuid.UUID) (session.Snapshot, error) {
	return a.apply(id, (*session.Controller).End)
}

func (a *App) apply(id uuid.UUID, fn func(*session.Controller) error) (session.Snapshot, error) {
	ctrl, err := a.get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := fn(ctrl); err != nil {
		return ctrl.Snapshot(), err
	}
	return ctrl.Snapshot(), nil
}

// GetResult returns the result of a finished session, from the registry while
// its completion is still being delivered and from the store afterwards.
func (a *App) GetResult(ctx context.Context, id uuid.UUID) (models.SessionResult, error) {
	a.mu.RLock()
	ctrl, live := a.sessions[id]
	a.mu.RUnlock()
	if live {
		if result, ok := ctrl.Result(); ok {
			return result, nil
		}
		return models.SessionResult{}, fmt.Errorf("%w: session %s is still running", session.ErrInvalidTransition, id)
	}

	if a.results == nil {
		return models.SessionResult{}, fmt.Errorf("%w: results are not persisted", ErrSessionNotFound)
	}
	return a.results.Get(ctx, id)
}

// Shutdown ends every live session and waits for their results to be handled.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.RLock()
	live := make([]*session.Controller, 0, len(a.sessions))
	for _, ctrl := range a.sessions {
		live = append(live, ctrl)
	}
	a.mu.RUnlock()

	for _, ctrl := range live {
		if err := ctrl.End(); err != nil && !errors.Is(err, session.ErrSessionEnded) {
			log.Warn().Err(err).Str("session_id", ctrl.ID().String()).Msg("failed to end session on shutdown")
		}
		ctrl.Close()
	}

	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Int("sessions", len(live)).Msg("practice sessions drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted with sessions pending: %w", ctx.Err())
	}
}
