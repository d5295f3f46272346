package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/event"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PushHandler accepts one push message per event.
type PushHandler interface {
	Push(ev *event.Event, raw []byte) *event.Future[Alert]
}

// SubscriberConfig configures the push channel connection.
type SubscriberConfig struct {
	// URL is the ws:// or wss:// endpoint delivering push messages.
	URL string

	// Header is sent with the handshake.
	Header http.Header

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration

	// ReconnectDelay is the pause between a dropped connection and the
	// next dial.
	ReconnectDelay time.Duration
}

// DefaultSubscriberConfig returns defaults for url.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		ReconnectDelay:   5 * time.Second,
	}
}

// Subscriber reads push messages from a websocket and hands each to a
// PushHandler as its own event.
type Subscriber struct {
	config   SubscriberConfig
	handler  PushHandler
	newEvent func(context.Context) *event.Event
	dialer   *websocket.Dialer
	logger   zerolog.Logger
}

// NewSubscriber creates a subscriber. newEvent creates the event for each
// message; nil uses event.New.
func NewSubscriber(config SubscriberConfig, handler PushHandler, newEvent func(context.Context) *event.Event) (*Subscriber, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("push url is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("push handler is required")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	if newEvent == nil {
		newEvent = event.New
	}

	return &Subscriber{
		config:   config,
		handler:  handler,
		newEvent: newEvent,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: logging.NewLogger(logging.ComponentPush).With().Str("url", config.URL).Logger(),
	}, nil
}

// Run dials the push endpoint and dispatches messages until ctx is done,
// reconnecting after dropped connections. It returns ctx's error.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().
			Err(err).
			Dur("retry_in", s.config.ReconnectDelay).
			Msg("Push channel disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.ReconnectDelay):
		}
	}
}

// session runs one connection until it fails.
func (s *Subscriber) session(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.config.URL, s.config.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer conn.Close()

	s.logger.Info().Msg("Push channel connected")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("push channel closed by server")
			}
			return fmt.Errorf("read push message: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		s.dispatch(ctx, data)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, data []byte) {
	ev := s.newEvent(ctx)
	s.handler.Push(ev, data)

	go func() {
		if err := ev.Settle(); err != nil {
			s.logger.Error().Err(err).Msg("Push event failed")
		}
	}()
}
