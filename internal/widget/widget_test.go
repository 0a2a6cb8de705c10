package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatwidget/internal/backend"
	"chatwidget/internal/storage"
	"chatwidget/internal/transcript"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	rendered []transcript.Message
	clears   int
}

func (v *fakeView) RenderMessage(m transcript.Message) { v.rendered = append(v.rendered, m) }
func (v *fakeView) ClearInput()                        { v.clears++ }

type fakeAsker struct {
	reply backend.Reply
	err   error
	// seen records the rendered transcript at the moment Ask is called.
	seen  []transcript.Message
	view  *fakeView
	calls int
}

func (a *fakeAsker) Ask(_ context.Context, _ string) (backend.Reply, error) {
	a.calls++
	if a.view != nil {
		a.seen = append([]transcript.Message(nil), a.view.rendered...)
	}
	return a.reply, a.err
}

func newWidget(asker *fakeAsker) (*Widget, *fakeView, *transcript.Store) {
	view := &fakeView{}
	asker.view = view
	store := transcript.NewStore(storage.NewMemory(), zerolog.Nop())
	return New(store, view, asker, zerolog.Nop()), view, store
}

func TestSubmitEchoesBeforeNetworkCall(t *testing.T) {
	ctx := context.Background()
	asker := &fakeAsker{reply: backend.Reply{Answer: "hello"}}
	w, view, store := newWidget(asker)

	require.True(t, w.Handle(ctx, "  hi there  "))

	require.Len(t, asker.seen, 1, "user message must be rendered before Ask")
	assert.Equal(t, transcript.Message{Role: transcript.RoleUser, Text: "hi there"}, asker.seen[0])
	assert.Equal(t, 1, view.clears)

	users := 0
	for _, m := range store.Load(ctx) {
		if m.Role == transcript.RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users)
}

func TestEmptyInputIsIgnored(t *testing.T) {
	ctx := context.Background()
	for _, in := range []string{"", "   ", "\n\t "} {
		asker := &fakeAsker{reply: backend.Reply{Answer: "x"}}
		w, view, store := newWidget(asker)

		assert.False(t, w.Handle(ctx, in))
		assert.Empty(t, view.rendered)
		assert.Zero(t, view.clears)
		assert.Empty(t, store.Load(ctx))
		assert.Zero(t, asker.calls)
	}
}

func TestAnswerIsRenderedAndPersisted(t *testing.T) {
	ctx := context.Background()
	w, view, store := newWidget(&fakeAsker{reply: backend.Reply{Answer: "42"}})

	w.Handle(ctx, "6*7?")

	want := transcript.Message{Role: transcript.RoleAssistant, Text: "42"}
	assert.Equal(t, want, view.rendered[len(view.rendered)-1])
	stored := store.Load(ctx)
	assert.Equal(t, want, stored[len(stored)-1])
}

func TestServerErrorIsRenderedNotPersisted(t *testing.T) {
	ctx := context.Background()
	w, view, store := newWidget(&fakeAsker{reply: backend.Reply{Error: "bad request"}})

	w.Handle(ctx, "x")

	assert.Equal(t, transcript.Message{Role: transcript.RoleError, Text: "bad request"}, view.rendered[1])
	assert.Equal(t, []transcript.Message{{Role: transcript.RoleUser, Text: "x"}}, store.Load(ctx))
}

func TestEmptyReplyUsesFallback(t *testing.T) {
	w, view, _ := newWidget(&fakeAsker{})
	w.Handle(context.Background(), "x")
	assert.Equal(t, transcript.Message{Role: transcript.RoleError, Text: FallbackErrorText}, view.rendered[1])
}

func TestTransportFailureRendersGenericError(t *testing.T) {
	ctx := context.Background()
	asker := &fakeAsker{err: backend.ErrTransport}
	w, view, store := newWidget(asker)

	sub, ok := w.Submit(ctx, "ping")
	require.True(t, ok)
	res := w.Send(ctx, sub)
	assert.True(t, errors.Is(res.Err, backend.ErrTransport))
	w.Resolve(ctx, res)

	require.Len(t, view.rendered, 2)
	assert.Equal(t, transcript.Message{Role: transcript.RoleError, Text: TransportErrorText}, view.rendered[1])
	assert.Len(t, store.Load(ctx), 1)
}

func TestRestoreReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	w, view, store := newWidget(&fakeAsker{})
	msgs := []transcript.Message{
		{Role: transcript.RoleUser, Text: "a"},
		{Role: transcript.RoleAssistant, Text: "b"},
	}
	for _, m := range msgs {
		require.NoError(t, store.Append(ctx, m))
	}

	assert.Equal(t, 2, w.Restore(ctx))
	assert.Equal(t, msgs, view.rendered)

	// Replay always appends.
	w.Restore(ctx)
	assert.Equal(t, append(append([]transcript.Message{}, msgs...), msgs...), view.rendered)
}

func TestOverlappingSubmissionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	w, view, store := newWidget(&fakeAsker{reply: backend.Reply{Answer: "ok"}})

	first, _ := w.Submit(ctx, "one")
	second, _ := w.Submit(ctx, "two")
	r2 := w.Send(ctx, second)
	r1 := w.Send(ctx, first)
	w.Resolve(ctx, r2)
	w.Resolve(ctx, r1)

	assert.Len(t, view.rendered, 4)
	assert.Len(t, store.Load(ctx), 4)
	assert.Equal(t, "one", r1.Submission.Text)
}

type brokenStorage struct{ *storage.Memory }

func (brokenStorage) SetItem(context.Context, string, string) error {
	return errors.New("quota exceeded")
}

func TestPersistErrorKeepsMessageRendered(t *testing.T) {
	view := &fakeView{}
	store := transcript.NewStore(brokenStorage{storage.NewMemory()}, zerolog.Nop())
	w := New(store, view, &fakeAsker{reply: backend.Reply{Answer: "a"}}, zerolog.Nop())

	var failed []transcript.Message
	w.OnPersistError = func(m transcript.Message, err error) { failed = append(failed, m) }

	w.Handle(context.Background(), "q")
	assert.Len(t, view.rendered, 2)
	assert.Len(t, failed, 2)
}

type flakyStorage struct {
	*storage.Memory
	fail bool
}

func (f *flakyStorage) SetItem(ctx context.Context, key, value string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.SetItem(ctx, key, value)
}

func TestPersistedHookFiresOnlyAfterSuccessfulWrite(t *testing.T) {
	backing := &flakyStorage{Memory: storage.NewMemory(), fail: true}
	store := transcript.NewStore(backing, zerolog.Nop())
	w := New(store, &fakeView{}, &fakeAsker{reply: backend.Reply{Answer: "a"}}, zerolog.Nop())

	var failed, saved int
	w.OnPersistError = func(transcript.Message, error) { failed++ }
	w.OnPersisted = func(transcript.Message) { saved++ }

	w.Handle(context.Background(), "q1")
	assert.Equal(t, 2, failed)
	assert.Equal(t, 0, saved)

	backing.fail = false
	w.Handle(context.Background(), "q2")
	assert.Equal(t, 2, failed)
	assert.Equal(t, 2, saved)
}

func TestHandleAgainstHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"pong"}`))
	}))
	defer srv.Close()

	view := &fakeView{}
	store := transcript.NewStore(storage.NewMemory(), zerolog.Nop())
	w := New(store, view, backend.New(srv.URL, time.Second, zerolog.Nop()), zerolog.Nop())

	w.Handle(context.Background(), "ping")
	assert.Equal(t, []transcript.Message{
		{Role: transcript.RoleUser, Text: "ping"},
		{Role: transcript.RoleAssistant, Text: "pong"},
	}, store.Load(context.Background()))
}
