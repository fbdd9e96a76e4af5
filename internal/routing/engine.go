// Package routing runs the per-user conversation state machine: it decides
// what to do with each inbound message and carries the decision out.
package routing

import (
	"context"
	"strings"
	"time"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/llm"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/session"
)

// Options wires an Engine. Policy, Sessions and Clock default when nil;
// a nil Transcriber makes every audio message take the fallback text.
type Options struct {
	Sessions    *session.Store
	Policy      *policy.Policy
	Persona     string
	Sender      domain.Sender
	Completer   llm.Completer
	Transcriber llm.Transcriber
	Clock       Clock
	Hooks       *hooks.Manager
}

// Result reports what Handle did with one message.
type Result struct {
	Route policy.Route
	Reset bool
}

// Engine handles inbound messages one at a time per user.
type Engine struct {
	sessions     *session.Store
	policy       *policy.Policy
	systemPrompt string
	sender       domain.Sender
	completer    llm.Completer
	transcriber  llm.Transcriber
	clock        Clock
	hooks        *hooks.Manager
	log          *logging.Logger
}

// NewEngine creates a routing engine.
func NewEngine(opts Options, log *logging.Logger) *Engine {
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore()
	}
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Engine{
		sessions:     opts.Sessions,
		policy:       opts.Policy,
		systemPrompt: policy.SystemPrompt(opts.Persona),
		sender:       opts.Sender,
		completer:    opts.Completer,
		transcriber:  opts.Transcriber,
		clock:        opts.Clock,
		hooks:        opts.Hooks,
		log:          log.Sub("routing"),
	}
}

// Sessions exposes the engine's session store.
func (e *Engine) Sessions() *session.Store { return e.sessions }

// Handle processes one inbound message end to end while holding the user's
// critical section. Provider and gateway failures never escape: they become
// fallback replies or log lines.
func (e *Engine) Handle(ctx context.Context, msg domain.InboundMessage) Result {
	user := msg.From
	unlock := e.sessions.Lock(user)
	defer unlock()

	now := msg.ReceivedAt
	if now.IsZero() {
		now = e.clock.Now()
	}
	prev, hasPrev := e.sessions.Touch(user, now)
	audio, hasAudio := msg.Audio()

	d := e.policy.Decide(policy.Facts{
		Text:          msg.Body,
		Now:           now,
		PrevSeen:      prev,
		HasPrev:       hasPrev,
		AwaitingHuman: e.sessions.IsAwaitingHuman(user),
		Audio:         hasAudio,
	})

	log := e.log.With(user)
	log.Info().
		Str("route", string(d.Route)).
		Bool("reset", d.Reset).
		Bool("audio", hasAudio).
		Msg("inbound message")
	e.emit(ctx, hooks.EventMessageReceived, map[string]any{
		"user":  user,
		"name":  msg.FromName,
		"body":  msg.Body,
		"route": string(d.Route),
		"audio": hasAudio,
	})

	if d.Reset {
		e.sessions.ResetWithSystemPrompt(user, e.systemPrompt)
		e.emit(ctx, hooks.EventSessionReset, map[string]any{"user": user, "firstContact": !hasPrev})
	}

	switch d.Route {
	case policy.RouteHandoff:
		e.handoff(ctx, log, msg)
	case policy.RouteSilence:
		log.Debug().Msg("awaiting human, staying silent")
	case policy.RouteGreeting:
		e.greet(ctx, log, user)
	case policy.RouteAudio:
		e.handleAudio(ctx, log, user, audio)
	case policy.RouteReply:
		e.sessions.Append(user, domain.RoleUser, strings.TrimSpace(msg.Body))
		e.reply(ctx, log, user)
	case policy.RouteIgnore:
		log.Debug().Msg("nothing to answer")
	}

	return Result{Route: d.Route, Reset: d.Reset}
}

func (e *Engine) handoff(ctx context.Context, log *logging.Logger, msg domain.InboundMessage) {
	e.send(ctx, log, msg.From, e.policy.Messages.HandoffAck)
	e.sessions.MarkAwaitingHuman(msg.From)
	log.Info().Msg("handoff requested")
	e.emit(ctx, hooks.EventHandoffRequested, map[string]any{
		"user": msg.From,
		"name": msg.FromName,
		"body": msg.Body,
	})
}

// greet re-seeds the history and sends the two-part greeting.
func (e *Engine) greet(ctx context.Context, log *logging.Logger, user string) {
	e.sessions.ResetWithSystemPrompt(user, e.systemPrompt)

	first, second := e.policy.Messages.GreetingFirst, e.policy.Messages.GreetingSecond
	e.sessions.Append(user, domain.RoleAssistant, first)
	e.send(ctx, log, user, first)

	e.clock.Sleep(e.policy.GreetingPause)

	e.sessions.Append(user, domain.RoleAssistant, second)
	e.send(ctx, log, user, second)

	e.emit(ctx, hooks.EventGreetingSent, map[string]any{"user": user})
}

func (e *Engine) handleAudio(ctx context.Context, log *logging.Logger, user string, audio domain.Attachment) {
	ack := e.policy.Messages.AudioAck
	e.sessions.Append(user, domain.RoleAssistant, ack)
	e.send(ctx, log, user, ack)

	e.clock.Sleep(e.policy.ReplyPause)

	text := e.policy.Messages.AudioFallback
	if e.transcriber == nil {
		log.Warn().Msg("no transcriber configured")
	} else if got, err := e.transcriber.Transcribe(ctx, audio.URL); err != nil {
		log.Warn().Err(err).Str("kind", string(llm.KindOf(err))).Msg("transcription failed, using fallback")
	} else if got = strings.TrimSpace(got); got == "" {
		log.Warn().Msg("empty transcript, using fallback")
	} else {
		text = got
	}

	e.sessions.Append(user, domain.RoleUser, text)
	e.reply(ctx, log, user)
}

// reply completes over the current history, which already ends with the
// user's turn.
func (e *Engine) reply(ctx context.Context, log *logging.Logger, user string) {
	start := e.clock.Now()

	var text string
	if e.completer == nil {
		text = UnexpectedText
		log.Error().Msg("no completer configured")
	} else if got, err := e.completer.Complete(ctx, e.sessions.History(user)); err != nil {
		text = FallbackText(err)
		log.Warn().Err(err).Str("kind", string(llm.KindOf(err))).Msg("completion failed, sending fallback")
	} else {
		text = e.policy.Sanitize(got)
	}

	if text == "" {
		log.Warn().Msg("reply empty after sanitizing, nothing sent")
		return
	}

	e.sessions.Append(user, domain.RoleAssistant, text)
	e.clock.Sleep(e.policy.ReplyPause)
	e.send(ctx, log, user, text)

	log.Info().Dur("duration", e.clock.Now().Sub(start)).Msg("reply sent")
}

// send delivers one message. Failures are logged and reported to hooks but
// never stop the flow; the turn is already in the history.
func (e *Engine) send(ctx context.Context, log *logging.Logger, to, body string) {
	if e.sender == nil {
		log.Error().Msg("no sender configured, message dropped")
		return
	}
	if err := e.sender.Send(ctx, domain.OutboundMessage{To: to, Body: body}); err != nil {
		log.Error().Err(err).Msg("send failed")
		e.emit(ctx, hooks.EventSendFailed, map[string]any{"user": to, "body": body, "error": err.Error()})
		return
	}
	e.emit(ctx, hooks.EventMessageSent, map[string]any{"user": to, "body": body})
}

func (e *Engine) emit(ctx context.Context, event string, data map[string]any) {
	if e.hooks == nil {
		return
	}
	e.hooks.Emit(ctx, event, data)
}

// Now reports the engine clock's time; used by the gateway to stamp inbound
// messages.
func (e *Engine) Now() time.Time { return e.clock.Now() }
