// Package chat is the PromptCraft conversation engine.
//
// Each user owns one durable transcript. A submitted message is appended as a
// user turn, then answered by exactly one assistant turn: a refusal when the
// message is not about a project, otherwise the AI service's reply (or an
// error turn when the AI call fails).
//
// FLOW OF A SUBMISSION:
//
//	SubmitMessage ─┬─ empty after trim ─────────────→ no-op
//	               ├─ append user turn
//	               ├─ !IsProjectRelated ────────────→ append refusal
//	               └─ Completer.Complete(BuildPrompt)
//	                     ├─ ok ────────────────────→ append reply
//	                     ├─ quota exhausted ───────→ append quota error turn
//	                     └─ anything else ─────────→ append generic error turn
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// Fixed assistant texts.
const (
	GreetingText = "Hi! 👋\n\nI am MICO Prompt Generator.\nShare your project idea."
	RefusalText  = "Please share a valid project idea."
	QuotaText    = "The AI service quota has been exhausted. Please try again later."
	ErrorText    = "Error generating AI prompt. Please try again."
)

// Intent and outcome labels reported to the Recorder.
const (
	IntentProject = "project"
	IntentRefused = "refused"

	OutcomeSuccess = "success"
	OutcomeQuota   = "quota_exhausted"
	OutcomeError   = "error"
)

// Completer generates text for a prompt. assistant.Gemini implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Recorder receives engine metrics. metrics.Collector implements it.
type Recorder interface {
	ObserveMessage(intent string)
	ObserveCompletion(outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMessage(string) {}

func (nopRecorder) ObserveCompletion(string, time.Duration) {}

// Config holds Engine dependencies.
type Config struct {
	Store     repository.TranscriptStore
	Completer Completer
	Recorder  Recorder // optional
	Logger    *slog.Logger

	// AITimeout bounds a single Complete call. Zero means 10 seconds.
	AITimeout time.Duration
}

// Engine runs the chat state machine on top of a TranscriptStore.
type Engine struct {
	store     repository.TranscriptStore
	completer Completer
	recorder  Recorder
	logger    *slog.Logger
	aiTimeout time.Duration

	// Two tabs submitting at the same time must not interleave their
	// user/assistant pairs.
	locks userLocks
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		store:     cfg.Store,
		completer: cfg.Completer,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		aiTimeout: cfg.AITimeout,
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.aiTimeout <= 0 {
		e.aiTimeout = 10 * time.Second
	}
	return e
}

// Greeting is the opening assistant turn shown above every transcript.
// It is not stored and has no index.
func Greeting() model.ChatTurn {
	return model.ChatTurn{
		Index: -1,
		Role:  model.RoleAssistant,
		Kind:  model.KindMessage,
		Text:  GreetingText,
	}
}

// SubmitMessage handles one message from the user of session.
//
// It returns the assistant turn that answered the message, or (nil, nil)
// when the message is empty after trimming. AI failures are recorded as
// error turns and never returned; storage failures are.
func (e *Engine) SubmitMessage(ctx context.Context, session *model.Session, raw string) (*model.ChatTurn, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	userTurn := &model.ChatTurn{
		Role: model.RoleUser,
		Kind: model.KindMessage,
		Text: text,
	}

	var reply *model.ChatTurn
	if !IsProjectRelated(text) {
		e.recorder.ObserveMessage(IntentRefused)
		reply = &model.ChatTurn{Role: model.RoleAssistant, Kind: model.KindRefusal, Text: RefusalText}
	} else {
		e.recorder.ObserveMessage(IntentProject)
		reply = e.complete(ctx, userID, text)
	}

	// The pair is stored in one append so a storage failure never leaves a
	// user turn without its answer. It is stored even if the client has gone
	// away while the AI call ran.
	if err := e.store.Append(context.WithoutCancel(ctx), userID, userTurn, reply); err != nil {
		return nil, fmt.Errorf("chat: appending turns: %w", err)
	}
	return reply, nil
}

// complete calls the AI service and turns the outcome into an assistant turn.
func (e *Engine) complete(ctx context.Context, userID, idea string) *model.ChatTurn {
	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	start := time.Now()
	text, err := e.completer.Complete(ctx, BuildPrompt(idea))
	elapsed := time.Since(start)

	switch {
	case err == nil:
		e.recorder.ObserveCompletion(OutcomeSuccess, elapsed)
		return &model.ChatTurn{Role: model.RoleAssistant, Kind: model.KindMessage, Text: text}

	case errors.Is(err, apperror.ErrQuotaExhausted):
		e.recorder.ObserveCompletion(OutcomeQuota, elapsed)
		e.logger.Warn("AI quota exhausted", slog.String("userID", userID))
		return &model.ChatTurn{Role: model.RoleAssistant, Kind: model.KindError, Text: QuotaText}

	default:
		e.recorder.ObserveCompletion(OutcomeError, elapsed)
		e.logger.Error("AI completion failed",
			slog.String("userID", userID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return &model.ChatTurn{Role: model.RoleAssistant, Kind: model.KindError, Text: ErrorText}
	}
}

// GetTurn returns the turn at index in the user's transcript.
// Out-of-range indexes return apperror.IndexOutOfRange (a not-found error).
func (e *Engine) GetTurn(ctx context.Context, session *model.Session, index int) (model.ChatTurn, error) {
	turns, err := e.Transcript(ctx, session)
	if err != nil {
		return model.ChatTurn{}, err
	}
	if index < 0 || index >= len(turns) {
		return model.ChatTurn{}, apperror.IndexOutOfRange(index, len(turns))
	}
	return turns[index], nil
}

// Transcript returns the stored turns of the session's user, oldest first.
func (e *Engine) Transcript(ctx context.Context, session *model.Session) ([]model.ChatTurn, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	turns, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat: loading transcript: %w", err)
	}
	return turns, nil
}

// Reset clears the transcript of the session's user.
func (e *Engine) Reset(ctx context.Context, session *model.Session) error {
	userID, err := sessionUser(session)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	if err := e.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("chat: clearing transcript: %w", err)
	}
	e.logger.Info("transcript reset", slog.String("userID", userID))
	return nil
}

// userLocks hands out one mutex per user ID. An entry lives only while
// someone holds or waits for it, so the map stays as small as the number of
// users with a request in flight.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sessionUser(session *model.Session) (string, error) {
	if session == nil || session.UserID == "" {
		return "", apperror.Unauthenticated()
	}
	return session.UserID, nil
}
