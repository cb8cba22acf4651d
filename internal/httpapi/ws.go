package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"minivault/internal/stream"
)

// closeGrace bounds the close handshake write at the end of a session.
const closeGrace = time.Second

// sessions tracks socket handlers; http.Server.Shutdown does not wait for
// hijacked connections.
var sessions sync.WaitGroup

// WaitSessions blocks until every socket session has finished (its log entry
// written and the connection closed) or ctx is done.
func WaitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts same-origin upgrades, plus origins allowed by the CORS
// configuration when it is enabled.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if corsEnabled {
		for _, o := range corsAllowedOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// wsSink forwards each fragment as one text message. Once a write fails or the
// reader has seen the peer go away, every Emit reports disconnection.
type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	gone         atomic.Bool
}

func (s *wsSink) Emit(frag string) error {
	if s.gone.Load() {
		return stream.ErrPeerDisconnected
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(frag)); err != nil {
		s.gone.Store(true)
		return fmt.Errorf("%w: %v", stream.ErrPeerDisconnected, err)
	}
	return nil
}

// watch drains incoming frames so close frames from the peer are processed,
// and flips the sink to disconnected when the read side ends.
func (s *wsSink) watch(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			s.gone.Store(true)
			return
		}
	}
}

// closeWith sends a close frame with code and reason.
func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
}

// handleSocket serves one prompt per connection:
// upgrade, read one {"prompt": ...} message, stream fragments, close.
func handleSocket(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Add(1)
		defer sessions.Done()
		sid := uuid.NewString()
		base := requestLogger(r).With().Str("transport", transportSocket).Str("session", sid).Logger()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			base.Debug().Err(err).Msg("upgrade failed")
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxBodyBytes)

		// AwaitingPrompt. Shutdown closes sessions that have not sent a prompt.
		stopAwait := context.AfterFunc(serverBaseCtx, func() {
			closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			_ = conn.Close()
		})
		_, data, err := conn.ReadMessage()
		if !stopAwait() {
			return
		}
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				base.Warn().Err(err).Msg("read prompt")
			}
			return
		}
		prompt, err := decodePrompt(bytes.NewReader(data))
		if err != nil {
			observeGeneration(transportSocket, outcomeMalformed, 0)
			base.Info().Err(err).Msg("malformed prompt message")
			closeWith(conn, websocket.CloseUnsupportedData, err.Error())
			return
		}

		// Streaming. The request context does not follow a hijacked
		// connection, disconnects are seen by the sink instead.
		sink := &wsSink{conn: conn, writeTimeout: wsWriteTimeout}
		readerDone := make(chan struct{})
		go sink.watch(readerDone)

		ctx, cancel := generationContext(r, serverBaseCtx, transportSocket)
		defer cancel()
		ctx = base.WithContext(ctx)
		start := time.Now()
		base.Info().Int("prompt_len", len(prompt)).Msg("generate start")

		res, err := svc.Run(ctx, prompt, sink)
		switch {
		case err != nil:
			observeGeneration(transportSocket, outcomeFailed, 0)
			base.Error().Err(err).Dur("dur", time.Since(start)).Msg("generate end")
			closeWith(conn, websocket.CloseInternalServerErr, "generation failed")
		case res.Disconnected:
			observeGeneration(transportSocket, outcomeDisconnected, res.Fragments)
			base.Info().Int("fragments", res.Fragments).Dur("dur", time.Since(start)).Msg("peer disconnected")
			if !sink.gone.Load() {
				// timeout or shutdown: tell the peer why the stream ended
				closeWith(conn, websocket.CloseGoingAway, "generation interrupted")
			}
		default:
			observeGeneration(transportSocket, outcomeOK, res.Fragments)
			base.Info().Int("fragments", res.Fragments).Dur("dur", time.Since(start)).Msg("generate end")
			closeWith(conn, websocket.CloseNormalClosure, "")
		}
		waitPeerClose(conn, readerDone, base)
	}
}

// waitPeerClose gives the peer a moment to answer our close frame before the
// connection is torn down.
func waitPeerClose(conn *websocket.Conn, readerDone <-chan struct{}, log zerolog.Logger) {
	select {
	case <-readerDone:
	case <-time.After(closeGrace):
		log.Debug().Msg("peer did not acknowledge close")
		_ = conn.Close()
		<-readerDone
	}
}
