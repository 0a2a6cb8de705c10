// Package backend is the HTTP client for the chat endpoint.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const ChatPath = "/api/chat"

// ErrTransport marks failures where no usable reply came back: the request
// could not complete or the body was not a JSON reply.
var ErrTransport = errors.New("chat request failed")

type Request struct {
	Message string `json:"message"`
}

// Reply is the decoded response body. A well-formed reply can carry an
// answer, an error, or neither.
type Reply struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"-"`
}

type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c, log: log}
}

func (c *Client) Ask(ctx context.Context, message string) (Reply, error) {
	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Request{Message: message}).
		Post(ChatPath)
	if err != nil {
		c.log.Error().Err(err).Msg("chat request failed")
		return Reply{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var reply Reply
	if err := json.Unmarshal(res.Body(), &reply); err != nil {
		c.log.Error().
			Err(err).
			Int("status_code", res.StatusCode()).
			Str("body", truncate(res.String(), 200)).
			Msg("unparsable chat response")
		return Reply{}, fmt.Errorf("%w: status %d: decode response: %w", ErrTransport, res.StatusCode(), err)
	}
	reply.Status = res.StatusCode()

	c.log.Debug().
		Int("status_code", reply.Status).
		Dur("elapsed", time.Since(start)).
		Bool("answered", reply.Answer != "").
		Msg("chat response")
	return reply, nil
}

// truncate keeps at most n cells of s, cutting on a rune boundary.
func truncate(s string, n int) string {
	return ansi.Truncate(s, n, "...")
}
