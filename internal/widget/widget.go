// Package widget ties the transcript store, a view and the chat backend into
// the submit, echo, ask, show cycle of the chat widget.
package widget

import (
	"context"
	"errors"
	"strings"

	"chatwidget/internal/backend"
	"chatwidget/internal/transcript"

	"github.com/rs/zerolog"
)

const (
	// FallbackErrorText is shown when a reply carries neither an answer nor
	// an error.
	FallbackErrorText = "Error"
	// TransportErrorText is shown when no reply could be obtained at all.
	TransportErrorText = "Could not reach the chat service."
)

// View is everything the widget needs from a display surface.
type View interface {
	RenderMessage(transcript.Message)
	ClearInput()
}

type Asker interface {
	Ask(ctx context.Context, message string) (backend.Reply, error)
}

type Renderer struct {
	view View
}

func NewRenderer(v View) *Renderer {
	return &Renderer{view: v}
}

func (r *Renderer) Display(m transcript.Message) {
	r.view.RenderMessage(m)
}

// Replay displays every message in order. It always appends, so replaying
// twice renders the conversation twice.
func (r *Renderer) Replay(msgs []transcript.Message) {
	for _, m := range msgs {
		r.Display(m)
	}
}

// Submission is a user message that has been echoed and is waiting for its
// reply.
type Submission struct {
	Text string
}

// Result is the outcome of one Send. Err is set for transport failures; the
// Message to show is always populated.
type Result struct {
	Submission Submission
	Message    transcript.Message
	Err        error
}

type Widget struct {
	store    *transcript.Store
	renderer *Renderer
	view     View
	asker    Asker
	log      zerolog.Logger

	// OnPersistError is called when a message was shown but could not be
	// written to the transcript.
	OnPersistError func(transcript.Message, error)
	// OnPersisted is called after a message was written to the transcript.
	OnPersisted func(transcript.Message)
}

func New(store *transcript.Store, view View, asker Asker, log zerolog.Logger) *Widget {
	return &Widget{
		store:    store,
		renderer: NewRenderer(view),
		view:     view,
		asker:    asker,
		log:      log,
	}
}

// Restore replays the stored transcript and returns how many messages it
// showed.
func (w *Widget) Restore(ctx context.Context) int {
	msgs := w.store.Load(ctx)
	w.renderer.Replay(msgs)
	w.log.Debug().Int("messages", len(msgs)).Msg("transcript restored")
	return len(msgs)
}

// Submit echoes and stores the user's message. Whitespace-only input is
// ignored and reported with ok=false.
func (w *Widget) Submit(ctx context.Context, input string) (Submission, bool) {
	text := strings.TrimSpace(input)
	if text == "" {
		return Submission{}, false
	}
	w.show(ctx, transcript.Message{Role: transcript.RoleUser, Text: text}, true)
	w.view.ClearInput()
	return Submission{Text: text}, true
}

// Send performs the backend call. It does not touch the view and is safe to
// run off the UI goroutine.
func (w *Widget) Send(ctx context.Context, sub Submission) Result {
	reply, err := w.asker.Ask(ctx, sub.Text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("chat submission failed")
		}
		return Result{
			Submission: sub,
			Message:    transcript.Message{Role: transcript.RoleError, Text: TransportErrorText},
			Err:        err,
		}
	}
	return Result{Submission: sub, Message: messageFromReply(reply)}
}

func messageFromReply(reply backend.Reply) transcript.Message {
	if reply.Answer != "" {
		return transcript.Message{Role: transcript.RoleAssistant, Text: reply.Answer}
	}
	text := reply.Error
	if text == "" {
		text = FallbackErrorText
	}
	return transcript.Message{Role: transcript.RoleError, Text: text}
}

// Resolve shows a result. Only assistant answers are written to the
// transcript; errors are display-only.
func (w *Widget) Resolve(ctx context.Context, res Result) {
	w.show(ctx, res.Message, res.Message.Role == transcript.RoleAssistant)
}

// Handle runs a full cycle synchronously and reports whether the input was
// accepted.
func (w *Widget) Handle(ctx context.Context, input string) bool {
	sub, ok := w.Submit(ctx, input)
	if !ok {
		return false
	}
	w.Resolve(ctx, w.Send(ctx, sub))
	return true
}

func (w *Widget) show(ctx context.Context, m transcript.Message, persist bool) {
	w.renderer.Display(m)
	if !persist {
		return
	}
	if err := w.store.Append(ctx, m); err != nil {
		w.log.Error().Err(err).Str("role", string(m.Role)).Msg("persist message")
		if w.OnPersistError != nil {
			w.OnPersistError(m, err)
		}
		return
	}
	if w.OnPersisted != nil {
		w.OnPersisted(m)
	}
}
