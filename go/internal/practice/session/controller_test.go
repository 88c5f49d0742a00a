package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/practice/evaluator"
	"github.com/mcdev12/adaptivq/go/internal/practice/events"
)

const waitFor = time.Second

// pendingEval is one evaluator call held open until the test replies.
type pendingEval struct {
	req   evaluator.Request
	reply chan evalReply
}

type evalReply struct {
	fb  models.Feedback
	err error
}

// scriptedEvaluator hands every request to the test over a channel.
type scriptedEvaluator struct {
	calls    atomic.Int32
	requests chan pendingEval
}

func newScriptedEvaluator() *scriptedEvaluator {
	return &scriptedEvaluator{requests: make(chan pendingEval, 8)}
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, req evaluator.Request) (models.Feedback, error) {
	e.calls.Add(1)
	p := pendingEval{req: req, reply: make(chan evalReply, 1)}
	e.requests <- p
	select {
	case r := <-p.reply:
		return r.fb, r.err
	case <-ctx.Done():
		return models.Feedback{}, ctx.Err()
	}
}

func (e *scriptedEvaluator) next(t *testing.T) pendingEval {
	t.Helper()
	select {
	case p := <-e.requests:
		return p
	case <-time.After(waitFor):
		t.Fatalf("evaluator was not called")
		return pendingEval{}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// types returns the recorded event types, ticks excluded.
func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.EventType
	for _, e := range p.events {
		if e.Type != events.EventTypeTimerTick {
			out = append(out, e.Type)
		}
	}
	return out
}

func questions(n, limitSec int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Prompt:       fmt.Sprintf("Prompt %d", i+1),
			Context:      "context",
			TimeLimitSec: limitSec,
		}
	}
	return qs
}

type harness struct {
	ctrl      *Controller
	clock     *clockwork.FakeClock
	eval      *scriptedEvaluator
	pub       *recordingPublisher
	completed chan models.SessionResult
}

func newHarness(t *testing.T, qs []models.Question) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		eval:      newScriptedEvaluator(),
		pub:       &recordingPublisher{},
		completed: make(chan models.SessionResult, 4),
	}
	ctrl, err := New(Config{
		Meta:       models.SessionMeta{Category: "behavioral", Level: 2},
		Questions:  qs,
		Evaluator:  h.eval,
		Clock:      h.clock,
		Publisher:  h.pub,
		OnComplete: func(r models.SessionResult) { h.completed <- r },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

func (h *harness) waitStatus(t *testing.T, want models.SessionStatus) Snapshot {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		s := h.ctrl.Snapshot()
		if s.Status == want {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, want %s", s.Status, want)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitComplete(t *testing.T) models.SessionResult {
	t.Helper()
	select {
	case r := <-h.completed:
		return r
	case <-time.After(waitFor):
		t.Fatalf("completion notification not delivered")
		return models.SessionResult{}
	}
}

func (h *harness) expectNoSecondCompletion(t *testing.T) {
	t.Helper()
	select {
	case <-h.completed:
		t.Fatalf("completion notification delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNew_RejectsEmptyQuestionList(t *testing.T) {
	ctrl, err := New(Config{Evaluator: newScriptedEvaluator(), Clock: clockwork.NewFakeClock()})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("New() error = %v, want ErrInvalidSession", err)
	}
	if ctrl != nil {
		t.Fatalf("New() returned a controller for an invalid session")
	}
}

func TestNew_StartsFirstQuestion(t *testing.T) {
	h := newHarness(t, questions(2, 90))

	s := h.ctrl.Snapshot()
	if s.Status != models.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", s.Status)
	}
	if s.Question == nil || s.Question.ID != "q1" {
		t.Fatalf("current question = %+v, want q1", s.Question)
	}
	if s.TimeRemainingSec != 90 || s.Display != "01:30" {
		t.Fatalf("remaining = %d (%s), want 90 (01:30)", s.TimeRemainingSec, s.Display)
	}
	if !s.Ticking {
		t.Fatalf("countdown not running on start")
	}
	if s.Feedback != nil {
		t.Fatalf("feedback present while ACTIVE")
	}
}

// Three questions, each answered manually, exhausting the list.
func TestController_FullRunToExhaustion(t *testing.T) {
	h := newHarness(t, questions(3, 60))

	h.clock.Advance(10 * time.Second)
	if got := h.ctrl.Snapshot().TimeRemainingSec; got != 50 {
		t.Fatalf("remaining after 10s = %d, want 50", got)
	}

	for i := 0; i < 3; i++ {
		answer := fmt.Sprintf("answer %d", i+1)
		if err := h.ctrl.UpdateResponse(answer); err != nil {
			t.Fatalf("UpdateResponse() error = %v", err)
		}
		if err := h.ctrl.Submit(); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if s := h.ctrl.Snapshot(); s.Status != models.SessionStatusEvaluating || s.Ticking {
			t.Fatalf("after submit: status = %s ticking = %v", s.Status, s.Ticking)
		}

		p := h.eval.next(t)
		if p.req.Response != answer {
			t.Fatalf("evaluated response = %q, want %q", p.req.Response, answer)
		}
		p.reply <- evalReply{fb: models.Feedback{Rating: 70 + i, Narrative: "ok"}}

		s := h.waitStatus(t, models.SessionStatusShowingFeedback)
		if s.Feedback == nil || s.Feedback.Rating != 70+i {
			t.Fatalf("feedback = %+v, want rating %d", s.Feedback, 70+i)
		}

		if err := h.ctrl.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		s = h.ctrl.Snapshot()
		if i < 2 {
			if s.Status != models.SessionStatusActive || s.QuestionIndex != i+1 {
				t.Fatalf("after next: status = %s index = %d", s.Status, s.QuestionIndex)
			}
			if s.TimeRemainingSec != 60 {
				t.Fatalf("countdown not reset: %d", s.TimeRemainingSec)
			}
			if s.Response != "" {
				t.Fatalf("response buffer carried over: %q", s.Response)
			}
		}
	}

	if s := h.ctrl.Snapshot(); s.Status != models.SessionStatusEnded {
		t.Fatalf("status = %s, want ENDED", s.Status)
	}

	result := h.waitComplete(t)
	want := map[string]string{"q1": "answer 1", "q2": "answer 2", "q3": "answer 3"}
	if diff := cmp.Diff(want, result.Responses); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
	if result.Reason != models.CompletionExhausted {
		t.Errorf("reason = %s, want exhausted", result.Reason)
	}
	if result.Answered != 3 || result.Total != 3 {
		t.Errorf("answered/total = %d/%d, want 3/3", result.Answered, result.Total)
	}
	if result.Meta.Category != "behavioral" {
		t.Errorf("meta not carried: %+v", result.Meta)
	}
	if got := h.eval.calls.Load(); got != 3 {
		t.Errorf("evaluator calls = %d, want 3", got)
	}
	h.expectNoSecondCompletion(t)

	<-h.ctrl.Done()
	wantTypes := []events.EventType{
		events.EventTypeSessionStarted,
		events.EventTypeQuestionStarted, events.EventTypeSubmissionAccepted, events.EventTypeFeedbackReady,
		events.EventTypeQuestionStarted, events.EventTypeSubmissionAccepted, events.EventTypeFeedbackReady,
		events.EventTypeQuestionStarted, events.EventTypeSubmissionAccepted, events.EventTypeFeedbackReady,
		events.EventTypeSessionEnded,
	}
	if diff := cmp.Diff(wantTypes, h.pub.types()); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
}

// An untouched question times out and an empty response is evaluated.
func TestController_TimeoutSubmitsEmptyResponse(t *testing.T) {
	h := newHarness(t, questions(2, 30))

	if err := h.ctrl.SubmitText("first"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	h.eval.next(t).reply <- evalReply{fb: models.Feedback{Rating: 50}}
	h.waitStatus(t, models.SessionStatusShowingFeedback)
	if err := h.ctrl.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	h.clock.Advance(30 * time.Second)
	p := h.eval.next(t)
	if p.req.QuestionID != "q2" || p.req.Response != "" {
		t.Fatalf("timeout evaluated %s with %q, want q2 with empty response", p.req.QuestionID, p.req.Response)
	}
	s := h.ctrl.Snapshot()
	if s.Status != models.SessionStatusEvaluating {
		t.Fatalf("status = %s, want EVALUATING", s.Status)
	}
	if got, ok := s.Responses["q2"]; !ok || got != "" {
		t.Fatalf("responses[q2] = %q (present %v), want empty string", got, ok)
	}

	p.reply <- evalReply{fb: models.Feedback{Rating: 0}}
	h.waitStatus(t, models.SessionStatusShowingFeedback)
	if err := h.ctrl.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	result := h.waitComplete(t)
	if result.Reason != models.CompletionExhausted || len(result.Responses) != 2 {
		t.Fatalf("result = %+v", result)
	}

	<-h.ctrl.Done()
	var sawExpired bool
	for _, typ := range h.pub.types() {
		if typ == events.EventTypeTimeExpired {
			sawExpired = true
		}
	}
	if !sawExpired {
		t.Errorf("no TimeExpired event published")
	}
}

func TestController_TimeoutSubmitsTypedBuffer(t *testing.T) {
	h := newHarness(t, questions(1, 5))

	if err := h.ctrl.UpdateResponse("half an answer"); err != nil {
		t.Fatalf("UpdateResponse() error = %v", err)
	}
	h.clock.Advance(5 * time.Second)

	if got := h.eval.next(t).req.Response; got != "half an answer" {
		t.Fatalf("timeout evaluated %q, want buffer contents", got)
	}
}

// End during Active: no evaluation, no response recorded.
func TestController_EndWhileActive(t *testing.T) {
	h := newHarness(t, questions(3, 60))

	if err := h.ctrl.UpdateResponse("draft"); err != nil {
		t.Fatalf("UpdateResponse() error = %v", err)
	}
	if err := h.ctrl.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	s := h.ctrl.Snapshot()
	if s.Status != models.SessionStatusEnded || s.Ticking || s.Question != nil {
		t.Fatalf("after End: %+v", s)
	}

	result := h.waitComplete(t)
	if result.Reason != models.CompletionUserEnded {
		t.Errorf("reason = %s, want user_ended", result.Reason)
	}
	if len(result.Responses) != 0 {
		t.Errorf("responses = %v, want none", result.Responses)
	}

	h.clock.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if got := h.eval.calls.Load(); got != 0 {
		t.Errorf("evaluator calls = %d, want 0", got)
	}
	h.expectNoSecondCompletion(t)
}

// A result arriving after End must not touch the session.
func TestController_EndDiscardsLateEvaluation(t *testing.T) {
	h := newHarness(t, questions(2, 60))

	if err := h.ctrl.SubmitText("answer"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	p := h.eval.next(t)

	if err := h.ctrl.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	result := h.waitComplete(t)

	p.reply <- evalReply{fb: models.Feedback{Rating: 99}}
	time.Sleep(50 * time.Millisecond)

	s := h.ctrl.Snapshot()
	if s.Status != models.SessionStatusEnded {
		t.Fatalf("status = %s, want ENDED", s.Status)
	}
	if s.Feedback != nil {
		t.Fatalf("late feedback applied: %+v", s.Feedback)
	}
	if len(result.Feedback) != 0 {
		t.Errorf("result feedback = %v, want none", result.Feedback)
	}
	if diff := cmp.Diff(map[string]string{"q1": "answer"}, result.Responses); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
	h.expectNoSecondCompletion(t)
}

func TestController_EvaluationFailureEndsSession(t *testing.T) {
	h := newHarness(t, questions(2, 60))

	if err := h.ctrl.SubmitText("answer"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	h.eval.next(t).reply <- evalReply{err: errors.New("model unavailable")}

	h.waitStatus(t, models.SessionStatusEnded)
	result := h.waitComplete(t)
	if result.Reason != models.CompletionEvaluationFailed {
		t.Fatalf("reason = %s, want evaluation_failed", result.Reason)
	}
	if result.Error == "" {
		t.Fatalf("result carries no error message")
	}
	if !errors.Is(h.ctrl.Next(), ErrSessionEnded) {
		t.Errorf("Next() after failure should report ErrSessionEnded")
	}
}

func TestController_RatingIsClamped(t *testing.T) {
	h := newHarness(t, questions(1, 60))

	if err := h.ctrl.SubmitText("answer"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	h.eval.next(t).reply <- evalReply{fb: models.Feedback{Rating: 250}}

	s := h.waitStatus(t, models.SessionStatusShowingFeedback)
	if s.Feedback.Rating != models.MaxRating {
		t.Fatalf("rating = %d, want %d", s.Feedback.Rating, models.MaxRating)
	}
}

func TestController_EmptyManualSubmitRejected(t *testing.T) {
	h := newHarness(t, questions(1, 60))

	err := h.ctrl.SubmitText("   \n")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("SubmitText(blank) error = %v, want ErrEmptyResponse", err)
	}
	s := h.ctrl.Snapshot()
	if s.Status != models.SessionStatusActive || !s.Ticking {
		t.Fatalf("blank submit changed state: status = %s ticking = %v", s.Status, s.Ticking)
	}

	if err := h.ctrl.SubmitText("real answer"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	if got := h.eval.next(t).req.Response; got != "real answer" {
		t.Fatalf("evaluated %q", got)
	}
}

func TestController_ManualThenTimeout(t *testing.T) {
	h := newHarness(t, questions(1, 10))

	h.clock.Advance(9 * time.Second)
	if err := h.ctrl.SubmitText("just in time"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	h.eval.next(t)

	h.clock.Advance(5 * time.Second)
	// A timer that lost the race with cancellation is ignored.
	h.ctrl.handleExpiry("q1")
	time.Sleep(20 * time.Millisecond)

	if got := h.eval.calls.Load(); got != 1 {
		t.Fatalf("evaluator calls = %d, want 1", got)
	}
	if got := h.ctrl.Snapshot().Responses["q1"]; got != "just in time" {
		t.Fatalf("responses[q1] = %q", got)
	}
}

func TestController_TimeoutThenManual(t *testing.T) {
	h := newHarness(t, questions(1, 10))

	if err := h.ctrl.UpdateResponse("partial"); err != nil {
		t.Fatalf("UpdateResponse() error = %v", err)
	}
	h.clock.Advance(10 * time.Second)
	h.eval.next(t)

	if err := h.ctrl.SubmitText("too late"); err != nil {
		t.Fatalf("late SubmitText() error = %v, want nil", err)
	}
	if err := h.ctrl.Submit(); err != nil {
		t.Fatalf("late Submit() error = %v, want nil", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := h.eval.calls.Load(); got != 1 {
		t.Fatalf("evaluator calls = %d, want 1", got)
	}
	if got := h.ctrl.Snapshot().Responses["q1"]; got != "partial" {
		t.Fatalf("responses[q1] = %q, want the buffer at expiry", got)
	}
}

func TestController_ConcurrentSubmitsAcceptOnce(t *testing.T) {
	h := newHarness(t, questions(1, 60))
	if err := h.ctrl.UpdateResponse("answer"); err != nil {
		t.Fatalf("UpdateResponse() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.ctrl.Submit()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ctrl.handleExpiry("q1")
	}()
	wg.Wait()

	h.eval.next(t)
	time.Sleep(20 * time.Millisecond)
	if got := h.eval.calls.Load(); got != 1 {
		t.Fatalf("evaluator calls = %d, want 1", got)
	}
}

func TestController_InvalidTransitions(t *testing.T) {
	h := newHarness(t, questions(1, 60))

	if err := h.ctrl.Next(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Next() while ACTIVE error = %v, want ErrInvalidTransition", err)
	}

	if err := h.ctrl.SubmitText("answer"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	if err := h.ctrl.UpdateResponse("edit"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("UpdateResponse() while EVALUATING error = %v, want ErrInvalidTransition", err)
	}
	if err := h.ctrl.Next(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Next() while EVALUATING error = %v, want ErrInvalidTransition", err)
	}

	if err := h.ctrl.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := h.ctrl.End(); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("second End() error = %v, want ErrSessionEnded", err)
	}
	if err := h.ctrl.Submit(); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Submit() after end error = %v, want ErrSessionEnded", err)
	}
	if err := h.ctrl.UpdateResponse("x"); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("UpdateResponse() after end error = %v, want ErrSessionEnded", err)
	}
	h.waitComplete(t)
}

func TestController_TicksPublishedWhileActive(t *testing.T) {
	h := newHarness(t, questions(1, 3))

	h.clock.Advance(time.Second)
	deadline := time.Now().Add(waitFor)
	for {
		h.pub.mu.Lock()
		var tick *events.SessionEvent
		for i := range h.pub.events {
			if h.pub.events[i].Type == events.EventTypeTimerTick {
				tick = &h.pub.events[i]
				break
			}
		}
		h.pub.mu.Unlock()
		if tick != nil {
			payload, err := events.ParseEventPayload(*tick)
			if err != nil {
				t.Fatalf("ParseEventPayload() error = %v", err)
			}
			got := payload.(*events.TimerTickPayload)
			if got.QuestionID != "q1" || got.TimeRemainingSec != 2 || got.Display != "00:02" {
				t.Fatalf("tick payload = %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no TimerTick published")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestController_StaleTickFromPreviousQuestionDropped(t *testing.T) {
	h := newHarness(t, questions(2, 60))

	if err := h.ctrl.SubmitText("first"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	h.eval.next(t).reply <- evalReply{fb: models.Feedback{Rating: 60}}
	h.waitStatus(t, models.SessionStatusShowingFeedback)
	if err := h.ctrl.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	// q1's run delivered a tick only after q2 became active.
	h.ctrl.handleTick("q1", 57)
	h.ctrl.handleTick("q2", 59)

	if err := h.ctrl.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	h.waitComplete(t)

	h.pub.mu.Lock()
	defer h.pub.mu.Unlock()
	var ticks []events.TimerTickPayload
	for _, e := range h.pub.events {
		if e.Type != events.EventTypeTimerTick {
			continue
		}
		payload, err := events.ParseEventPayload(e)
		if err != nil {
			t.Fatalf("ParseEventPayload() error = %v", err)
		}
		ticks = append(ticks, *payload.(*events.TimerTickPayload))
	}
	want := []events.TimerTickPayload{{QuestionID: "q2", TimeRemainingSec: 59, Display: "00:59"}}
	if diff := cmp.Diff(want, ticks); diff != "" {
		t.Fatalf("ticks mismatch (-want +got):\n%s", diff)
	}
}
