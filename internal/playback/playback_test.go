package playback

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAdapter_AttachDeliversStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("segment-data"))
	}))
	defer server.Close()

	a := New(NewHTTPEngine(nil), testLogger(), nil)
	sink := &syncBuffer{}
	require.NoError(t, a.Attach(context.Background(), Source{URL: server.URL}, sink))

	require.Eventually(t, func() bool {
		return sink.String() == "segment-data" && !a.Attached()
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, a.Err())
	assert.Equal(t, uint64(len("segment-data")), a.BytesRead())
}

func TestAdapter_AttachRejectedUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := New(NewHTTPEngine(nil), testLogger(), nil)
	err := a.Attach(context.Background(), Source{URL: server.URL}, &syncBuffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlayback)
	assert.False(t, a.Attached())
}

func TestAdapter_MidStreamFailureReportsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than delivered so the client sees a truncated body.
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("partial"))
	}))
	defer server.Close()

	fatal := make(chan error, 1)
	a := New(NewHTTPEngine(nil), testLogger(), func(err error) { fatal <- err })
	require.NoError(t, a.Attach(context.Background(), Source{URL: server.URL}, &syncBuffer{}))

	select {
	case err := <-fatal:
		assert.ErrorIs(t, err, ErrUpstream)
	case <-time.After(5 * time.Second):
		t.Fatal("fatal callback never fired")
	}
	assert.ErrorIs(t, a.Err(), ErrUpstream)
}

func TestAdapter_DoubleAttach(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("live"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	a := New(NewHTTPEngine(nil), testLogger(), nil)
	sink := &syncBuffer{}
	require.NoError(t, a.Attach(context.Background(), Source{URL: server.URL}, sink))
	require.Eventually(t, func() bool { return sink.String() == "live" },
		5*time.Second, 10*time.Millisecond)

	err := a.Attach(context.Background(), Source{URL: server.URL}, &syncBuffer{})
	assert.ErrorIs(t, err, ErrAlreadyAttached)

	a.Detach()
	assert.False(t, a.Attached())
	assert.NoError(t, a.Err())

	// Detach is idempotent.
	a.Detach()
}

func TestAdapter_NoEngine(t *testing.T) {
	a := New(nil, testLogger(), nil)
	err := a.Attach(context.Background(), Source{URL: "http://example.com"}, &syncBuffer{})
	assert.ErrorIs(t, err, ErrUnsupportedPlayback)
}

func TestAdapter_VolumeAndMute(t *testing.T) {
	a := New(nil, testLogger(), nil)

	assert.Equal(t, 1.0, a.Volume())
	a.SetVolume(0.5)
	assert.Equal(t, 0.5, a.Volume())
	a.SetVolume(-1)
	assert.Equal(t, 0.0, a.Volume())
	a.SetVolume(7)
	assert.Equal(t, 1.0, a.Volume())

	assert.False(t, a.Muted())
	a.SetMuted(true)
	assert.True(t, a.Muted())
}

func TestSessionEngine_PlaysSupervisedOutput(t *testing.T) {
	sup := supervisor.New(supervisor.Config{
		StartGracePeriod: 5 * time.Second,
		KillGracePeriod:  500 * time.Millisecond,
	}, testLogger())
	t.Cleanup(func() { _ = sup.Close() })

	sess, err := sup.Start(context.Background(), "http://example.com/live",
		[]string{"sh", "-c", "printf hello; sleep 60"})
	require.NoError(t, err)

	a := New(NewSessionEngine(sess), testLogger(), nil)
	sink := &syncBuffer{}
	require.NoError(t, a.Attach(context.Background(), Source{URL: "http://example.com/live"}, sink))

	require.Eventually(t, func() bool { return sink.String() == "hello" },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, supervisor.StateRunning, sess.State())

	// Detaching is a client disconnect and must take the process down.
	a.Detach()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session survived detach")
	}
	assert.Equal(t, supervisor.StateTerminated, sess.State())
}

func TestSessionEngine_ProcessExitReportsFatal(t *testing.T) {
	sup := supervisor.New(supervisor.Config{
		StartGracePeriod: 5 * time.Second,
		KillGracePeriod:  500 * time.Millisecond,
	}, testLogger())
	t.Cleanup(func() { _ = sup.Close() })

	sess, err := sup.Start(context.Background(), "http://example.com/short",
		[]string{"sh", "-c", "printf data"})
	require.NoError(t, err)

	fatal := make(chan error, 1)
	a := New(NewSessionEngine(sess), testLogger(), func(err error) { fatal <- err })
	require.NoError(t, a.Attach(context.Background(), Source{URL: "http://example.com/short"}, &syncBuffer{}))

	// The process exits on its own; that is never a clean end of stream.
	select {
	case err := <-fatal:
		assert.ErrorIs(t, err, ErrUpstream)
	case <-time.After(5 * time.Second):
		t.Fatal("fatal callback never fired after process exit")
	}
	assert.ErrorIs(t, a.Err(), ErrUpstream)
	assert.False(t, a.Attached())
}
