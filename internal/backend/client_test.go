package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *Request) {
	t.Helper()
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestAskAnswer(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"answer":"42"}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	reply, err := c.Ask(context.Background(), "meaning of life")
	require.NoError(t, err)
	assert.Equal(t, "42", reply.Answer)
	assert.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, "meaning of life", got.Message)
}

func TestAskApplicationError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":"bad request"}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	reply, err := c.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, reply.Answer)
	assert.Equal(t, "bad request", reply.Error)
	assert.Equal(t, http.StatusBadRequest, reply.Status)
}

func TestAskEmptyObject(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	reply, err := c.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, reply.Answer)
	assert.Empty(t, reply.Error)
}

func TestAskMalformedBodyIsTransportError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	_, err := c.Ask(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "502")
}

func TestAskUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, zerolog.Nop())
	_, err := c.Ask(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestAskTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, 50*time.Millisecond, zerolog.Nop())
	_, err := c.Ask(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	got := truncate("héllo wörld ünïcode", 8)
	assert.True(t, utf8.ValidString(got), got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 8)
	assert.True(t, strings.HasSuffix(got, "..."), got)
}
