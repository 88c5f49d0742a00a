package session

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
	"github.com/mcdev12/adaptivq/go/internal/practice/gate"
	"github.com/mcdev12/adaptivq/go/internal/practice/sequencer"
	"github.com/mcdev12/adaptivq/go/internal/practice/timer"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSession      = sequencer.ErrInvalidSession
	ErrEmptyResponse       = gate.ErrEmptyResponse
	ErrDuplicateSubmission = gate.ErrDuplicateSubmission
	ErrEvaluationFailure   = evaluator.ErrEvaluationFailure
	ErrSessionEnded        = errors.New("session has ended")
	ErrInvalidTransition   = errors.New("invalid session transition")
)

const (
	eventBufferSize = 256
	publishTimeout  = 5 * time.Second
)

// Config wires a Controller to its collaborators. A zero ID is replaced with a
// fresh one, a nil Clock with the real clock and a nil Publisher with a no-op.
// OnComplete is called once, after the SessionEnded event has been published.
type Config struct {
	ID         uuid.UUID
	Meta       models.SessionMeta
	Questions  []models.Question
	Evaluator  evaluator.Evaluator
	Clock      clockwork.Clock
	Publisher  events.Publisher
	OnComplete func(models.SessionResult)
}

// Controller drives one practice run: question, answer, feedback, advance or end.
//
// Every state change happens under mu, so timer expiry, evaluator completion
// and user commands are applied one at a time in whatever order they arrive.
// The submission gate decides which trigger wins a question.
type Controller struct {
	id         uuid.UUID
	meta       models.SessionMeta
	clock      clockwork.Clock
	evaluator  evaluator.Evaluator
	publisher  events.Publisher
	onComplete func(models.SessionResult)

	// evalCtx is only cancelled by Close; ending a session leaves in-flight
	// evaluations running and discards their results instead.
	evalCtx    context.Context
	cancelEval context.CancelFunc

	mu        sync.Mutex
	status    models.SessionStatus
	seq       *sequencer.Sequencer
	gate      *gate.Gate
	countdown *timer.Countdown
	buffer    string
	responses map[string]string
	feedback  *models.Feedback
	history   map[string]models.Feedback
	evalToken uint64
	startedAt time.Time
	result    *models.SessionResult

	eventCh chan events.SessionEvent
	done    chan struct{}
}

// New validates the question list and starts the session: status Active with
// the countdown running for the first question.
func New(cfg Config) (*Controller, error) {
	seq, err := sequencer.New(cfg.Questions)
	if err != nil {
		return nil, err
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("%w: no evaluator", ErrInvalidSession)
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}

	evalCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:         cfg.ID,
		meta:       cfg.Meta,
		clock:      cfg.Clock,
		evaluator:  cfg.Evaluator,
		publisher:  cfg.Publisher,
		onComplete: cfg.OnComplete,
		evalCtx:    evalCtx,
		cancelEval: cancel,
		seq:        seq,
		gate:       gate.New(),
		responses:  make(map[string]string),
		history:    make(map[string]models.Feedback),
		eventCh:    make(chan events.SessionEvent, eventBufferSize),
		done:       make(chan struct{}),
	}
	c.countdown = timer.NewCountdown(cfg.Clock)

	go c.dispatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.startedAt = c.clock.Now()
	c.emitLocked(events.EventTypeSessionStarted, events.SessionStartedPayload{
		Category:       c.meta.Category,
		Level:          c.meta.Level,
		TotalQuestions: seq.Len(),
		StartedAt:      c.startedAt,
	})
	c.activateLocked()

	log.Info().
		Str("session_id", c.id.String()).
		Str("category", c.meta.Category).
		Int("total_questions", seq.Len()).
		Msg("practice session started")

	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID { return c.id }

// Done is closed once the completion notification has been delivered.
func (c *Controller) Done() <-chan struct{} { return c.done }

// UpdateResponse replaces the response buffer for the active question.
func (c *Controller) UpdateResponse(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.SessionStatusEnded {
		return ErrSessionEnded
	}
	if c.status != models.SessionStatusActive {
		return fmt.Errorf("%w: cannot edit response while %s", ErrInvalidTransition, c.status)
	}
	c.buffer = text
	return nil
}

// Submit manually submits the response buffer. A blank buffer returns
// ErrEmptyResponse and leaves the countdown running. A repeated submit for a
// question that already accepted one is ignored.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(gate.TriggerManual)
}

// SubmitText sets the buffer to text and submits it in one step.
func (c *Controller) SubmitText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.SessionStatusActive {
		c.buffer = text
	}
	return c.submitLocked(gate.TriggerManual)
}

// Next acknowledges the current feedback and moves on: to the next question
// when one exists, otherwise to Ended.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.SessionStatusEnded {
		return ErrSessionEnded
	}
	if c.status != models.SessionStatusShowingFeedback {
		return fmt.Errorf("%w: next requested while %s", ErrInvalidTransition, c.status)
	}

	c.feedback = nil
	c.buffer = ""
	if !c.seq.Advance() {
		c.endLocked(models.CompletionExhausted, nil)
		return nil
	}
	c.activateLocked()
	return nil
}

// End terminates the session from any live state. In-flight evaluations are
// left to finish and their results are dropped.
func (c *Controller) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.SessionStatusEnded {
		return ErrSessionEnded
	}
	c.endLocked(models.CompletionUserEnded, nil)
	return nil
}

// Close aborts any in-flight evaluation. It does not end the session.
func (c *Controller) Close() {
	c.cancelEval()
}

// Result returns the completion result once the session has ended.
func (c *Controller) Result() (models.SessionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return models.SessionResult{}, false
	}
	return cloneResult(*c.result), true
}

// activateLocked opens the current question and restarts the countdown.
func (c *Controller) activateLocked() {
	q, _ := c.seq.Current()
	c.status = models.SessionStatusActive
	c.gate.Open(q.ID)

	qid := q.ID
	c.countdown.StartWithTicks(q.TimeLimitSec,
		func(remaining int) { c.handleTick(qid, remaining) },
		func() { c.handleExpiry(qid) },
	)

	c.emitLocked(events.EventTypeQuestionStarted, events.QuestionStartedPayload{
		QuestionID:    q.ID,
		QuestionIndex: c.seq.Index(),
		Prompt:        q.Prompt,
		Context:       q.Context,
		TimeLimitSec:  q.TimeLimitSec,
		StartedAt:     c.clock.Now(),
	})

	log.Info().
		Str("session_id", c.id.String()).
		Str("question_id", q.ID).
		Int("question_index", c.seq.Index()).
		Int("time_limit_sec", q.TimeLimitSec).
		Msg("question active")
}

func (c *Controller) submitLocked(trigger gate.Trigger) error {
	if c.status == models.SessionStatusEnded {
		return ErrSessionEnded
	}
	q, ok := c.seq.Current()
	if !ok {
		return ErrSessionEnded
	}

	sub, err := c.gate.Submit(q.ID, c.buffer, trigger)
	if errors.Is(err, gate.ErrDuplicateSubmission) {
		log.Debug().
			Str("session_id", c.id.String()).
			Str("question_id", q.ID).
			Str("trigger", string(trigger)).
			Msg("duplicate submission ignored")
		return nil
	}
	if err != nil {
		return err
	}

	c.countdown.Cancel()
	c.responses[sub.QuestionID] = sub.Response
	c.status = models.SessionStatusEvaluating
	c.evalToken++
	token := c.evalToken

	c.emitLocked(events.EventTypeSubmissionAccepted, events.SubmissionAcceptedPayload{
		QuestionID: sub.QuestionID,
		Trigger:    string(sub.Trigger),
		Empty:      sub.Response == "",
	})

	log.Info().
		Str("session_id", c.id.String()).
		Str("question_id", sub.QuestionID).
		Str("trigger", string(sub.Trigger)).
		Msg("submission accepted, evaluating")

	req := evaluator.Request{
		QuestionID: q.ID,
		Prompt:     q.Prompt,
		Context:    q.Context,
		Response:   sub.Response,
	}
	go c.evaluate(token, req)
	return nil
}

func (c *Controller) evaluate(token uint64, req evaluator.Request) {
	fb, err := c.evaluator.Evaluate(c.evalCtx, req)
	c.finishEvaluation(token, req.QuestionID, fb, err)
}

func (c *Controller) finishEvaluation(token uint64, questionID string, fb models.Feedback, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.SessionStatusEvaluating || c.evalToken != token {
		log.Debug().
			Str("session_id", c.id.String()).
			Str("question_id", questionID).
			Str("status", string(c.status)).
			Msg("discarding stale evaluation result")
		return
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", c.id.String()).
			Str("question_id", questionID).
			Msg("evaluation failed, ending session")
		if !errors.Is(err, ErrEvaluationFailure) {
			err = fmt.Errorf("%w: %w", ErrEvaluationFailure, err)
		}
		c.endLocked(models.CompletionEvaluationFailed, err)
		return
	}

	fb = fb.ClampRating()
	c.feedback = &fb
	c.history[questionID] = fb
	c.status = models.SessionStatusShowingFeedback

	c.emitLocked(events.EventTypeFeedbackReady, events.FeedbackReadyPayload{
		QuestionID: questionID,
		Feedback:   fb,
		HasNext:    c.seq.Index()+1 < c.seq.Len(),
	})

	log.Info().
		Str("session_id", c.id.String()).
		Str("question_id", questionID).
		Int("rating", fb.Rating).
		Msg("feedback ready")
}

// handleExpiry runs on the countdown goroutine when qid's time runs out.
func (c *Controller) handleExpiry(qid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.SessionStatusActive {
		log.Debug().
			Str("session_id", c.id.String()).
			Str("question_id", qid).
			Str("status", string(c.status)).
			Msg("timer expiry after question closed - ignoring")
		return
	}
	if q, ok := c.seq.Current(); !ok || q.ID != qid {
		return
	}

	c.emitLocked(events.EventTypeTimeExpired, events.TimeExpiredPayload{QuestionID: qid})
	log.Info().Str("session_id", c.id.String()).Str("question_id", qid).Msg("time's up, auto-submitting")

	if err := c.submitLocked(gate.TriggerTimeout); err != nil {
		log.Error().Err(err).Str("session_id", c.id.String()).Msg("auto-submit failed")
	}
}

// handleTick runs on the countdown goroutine. A tick from an earlier
// question's run can arrive after the session moved on and is dropped.
func (c *Controller) handleTick(qid string, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.SessionStatusActive {
		return
	}
	if q, ok := c.seq.Current(); !ok || q.ID != qid {
		return
	}
	c.emitLocked(events.EventTypeTimerTick, events.TimerTickPayload{
		QuestionID:       qid,
		TimeRemainingSec: remaining,
		Display:          timer.FormatRemaining(remaining),
	})
}

func (c *Controller) endLocked(reason models.CompletionReason, cause error) {
	c.countdown.Cancel()
	c.gate.Close()
	c.status = models.SessionStatusEnded
	c.feedback = nil
	c.evalToken++

	result := models.SessionResult{
		SessionID: c.id,
		Meta:      c.meta,
		Reason:    reason,
		Responses: make(map[string]string, len(c.responses)),
		Feedback:  make(map[string]models.Feedback, len(c.history)),
		Answered:  len(c.responses),
		Total:     c.seq.Len(),
		StartedAt: c.startedAt,
		EndedAt:   c.clock.Now(),
	}
	for k, v := range c.responses {
		result.Responses[k] = v
	}
	for k, v := range c.history {
		result.Feedback[k] = v
	}
	if cause != nil {
		result.Error = cause.Error()
	}
	c.result = &result

	c.emitLocked(events.EventTypeSessionEnded, events.SessionEndedPayload{
		Reason:   reason,
		Answered: result.Answered,
		Total:    result.Total,
		Error:    result.Error,
	})
	close(c.eventCh)

	log.Info().
		Str("session_id", c.id.String()).
		Str("reason", string(reason)).
		Int("answered", result.Answered).
		Int("total", result.Total).
		Msg("practice session ended")
}

// emitLocked queues an event for the dispatcher. Callers must hold c.mu.
func (c *Controller) emitLocked(eventType events.EventType, payload any) {
	if c.result != nil && eventType != events.EventTypeSessionEnded {
		return
	}
	event, err := events.NewSessionEvent(c.id, eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", c.id.String()).Msg("failed to build session event")
		return
	}
	c.eventCh <- event
}

// dispatch publishes queued events in order, then delivers the completion
// notification exactly once.
func (c *Controller) dispatch() {
	defer close(c.done)

	for event := range c.eventCh {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := c.publisher.Publish(ctx, event); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", event.SessionID).
				Str("event_type", string(event.Type)).
				Msg("failed to publish session event")
		}
		cancel()
	}

	result, ok := c.Result()
	if ok && c.onComplete != nil {
		c.onComplete(result)
	}
}

func cloneResult(r models.SessionResult) models.SessionResult {
	responses := make(map[string]string, len(r.Responses))
	for k, v := range r.Responses {
		responses[k] = v
	}
	feedback := make(map[string]models.Feedback, len(r.Feedback))
	for k, v := range r.Feedback {
		feedback[k] = v
	}
	r.Responses = responses
	r.Feedback = feedback
	return r
}
