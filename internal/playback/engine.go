package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"mosaic/internal/httpclient"
	"mosaic/internal/supervisor"
)

// HTTPEngine pulls a stream directly from its source URL. Used for
// passthrough profiles where no transcoder process is involved.
type HTTPEngine struct {
	client *httpclient.Client
}

// NewHTTPEngine creates an engine backed by the shared upstream client.
func NewHTTPEngine(client *httpclient.Client) *HTTPEngine {
	if client == nil {
		client = httpclient.NewWithDefaults()
	}
	return &HTTPEngine{client: client}
}

// Open issues the upstream request and hands back the response body.
func (e *HTTPEngine) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("%w: empty source url", ErrPlayback)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	if src.UserAgent != "" {
		req.Header.Set("User-Agent", src.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v",
			ErrPlayback, httpclient.ObfuscateURLString(src.URL), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: upstream status %d",
			ErrPlayback, httpclient.ObfuscateURLString(src.URL), resp.StatusCode)
	}
	return resp.Body, nil
}

// SessionEngine plays the output of a supervised transcoder session.
type SessionEngine struct {
	session *supervisor.Session
}

// NewSessionEngine creates an engine reading from sess.
func NewSessionEngine(sess *supervisor.Session) *SessionEngine {
	return &SessionEngine{session: sess}
}

// Open wires the session's output through a pipe. Closing the reader or
// canceling ctx stops the session, matching client-disconnect semantics. A
// process exit that was not requested closes the pipe with an error so the
// reader never mistakes it for a clean end of stream.
func (e *SessionEngine) Open(ctx context.Context, _ Source) (io.ReadCloser, error) {
	if e.session == nil {
		return nil, fmt.Errorf("%w: no session", ErrPlayback)
	}

	pr, pw := io.Pipe()
	go func() {
		err := e.session.StreamTo(ctx, pw)
		if err == nil && ctx.Err() == nil {
			if exitErr := e.session.Err(); exitErr != nil {
				err = fmt.Errorf("%w: %v", ErrUpstream, exitErr)
			} else {
				err = fmt.Errorf("%w: transcoder exited", ErrUpstream)
			}
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}
