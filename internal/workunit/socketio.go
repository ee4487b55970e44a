package workunit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event every workunit is emitted as.
const EventName = "workunit"

// SocketIOOptions configures the socket.io sink.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOSink emits events to a socket.io server.
type SocketIOSink struct {
	io *socket.Socket
}

// DialSocketIO connects to the server and waits for the connection to be
// acknowledged.
func DialSocketIO(ctx context.Context, o SocketIOOptions) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", o.URL)
	logger.Debug("Connecting workunit sink.")

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Info("🔌 Workunit sink connected.", "sid", io.Id())
		return &SocketIOSink{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(o.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", o.ConnectTimeout)
	}
}

func (s *SocketIOSink) Emit(ctx context.Context, ev Event) {
	if !s.io.Connected() {
		ctxlog.FromContext(ctx).Debug("Dropping workunit, sink disconnected.", "span", ev.SpanID)
		return
	}
	s.io.Emit(EventName, payload(ev))
}

// Close disconnects from the server.
func (s *SocketIOSink) Close() error {
	s.io.Disconnect()
	return nil
}

// payload flattens ev into the JSON-friendly map sent over the wire.
func payload(ev Event) map[string]any {
	m := map[string]any{
		"kind":        string(ev.Kind),
		"span_id":     ev.SpanID,
		"rule":        ev.Rule,
		"description": ev.Description,
		"time":        ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.ParentID != "" {
		m["parent_id"] = ev.ParentID
	}
	if ev.Kind == Completed {
		m["state"] = ev.State
		m["duration_ms"] = ev.Duration.Milliseconds()
		if ev.Error != "" {
			m["error"] = ev.Error
		}
	}
	return m
}
