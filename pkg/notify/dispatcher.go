package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/offline-agent/pkg/event"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pushMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_push_messages_total",
		Help: "Total push messages received by payload kind",
	}, []string{"payload"}) // "json", "raw", "empty"

	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_notification_interactions_total",
		Help: "Total alert interactions by routing action",
	}, []string{"action"}) // "focus", "open"

	notifyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_notification_errors_total",
		Help: "Total notification channel errors by operation",
	}, []string{"operation"}) // "show", "close", "windows", "focus", "open"
)

// Alert is a user-facing notification.
type Alert struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Icon    string    `json:"icon"`
	Badge   string    `json:"badge"`
	Vibrate []int     `json:"vibrate"`
	Data    AlertData `json:"data"`
}

// AlertData is the routing data carried by an alert.
type AlertData struct {
	OpenURL string `json:"openUrl"`
}

// Presenter displays and dismisses alerts.
type Presenter interface {
	Show(ctx context.Context, alert Alert) error
	Close(ctx context.Context, id string) error
}

// Window is an active application instance.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens application instances.
type Clients interface {
	Windows(ctx context.Context) ([]Window, error)
	Open(ctx context.Context, url string) (Window, error)
}

// Interaction is a user action on a shown alert.
type Interaction struct {
	Alert Alert
}

// Action is the routing outcome of an interaction.
type Action string

const (
	// ActionFocus brought an existing window forward.
	ActionFocus Action = "focus"

	// ActionOpen opened a new window.
	ActionOpen Action = "open"
)

// Dispatcher turns push messages into alerts and routes interactions. It
// holds no per-message state.
type Dispatcher struct {
	presenter Presenter
	clients   Clients
	base      *url.URL
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher. base resolves relative openUrl values.
func NewDispatcher(presenter Presenter, clients Clients, base *url.URL) (*Dispatcher, error) {
	if presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}
	if clients == nil {
		return nil, fmt.Errorf("clients are required")
	}
	if base == nil || !base.IsAbs() {
		return nil, fmt.Errorf("absolute base url is required")
	}
	return &Dispatcher{
		presenter: presenter,
		clients:   clients,
		base:      base,
		logger:    logging.NewLogger(logging.ComponentNotify),
	}, nil
}

// Push builds an alert from raw and shows it under ev's extended lifetime.
func (d *Dispatcher) Push(ev *event.Event, raw []byte) *event.Future[Alert] {
	payload, err := ParsePayload(raw)
	switch {
	case errors.Is(err, ErrMalformedPushPayload):
		pushMessagesTotal.WithLabelValues("raw").Inc()
		d.logger.Debug().Err(err).Msg("Push payload is not JSON, using raw text")
	case len(raw) == 0:
		pushMessagesTotal.WithLabelValues("empty").Inc()
	default:
		pushMessagesTotal.WithLabelValues("json").Inc()
	}

	alert := Alert{
		ID:      uuid.NewString(),
		Title:   payload.Title,
		Body:    payload.Body,
		Icon:    payload.Icon,
		Badge:   DefaultBadge,
		Vibrate: append([]int(nil), DefaultVibrate...),
		Data:    AlertData{OpenURL: payload.OpenURL},
	}

	return event.Go(ev, func(ctx context.Context) (Alert, error) {
		if err := d.presenter.Show(ctx, alert); err != nil {
			notifyErrorsTotal.WithLabelValues("show").Inc()
			d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to show notification")
			return alert, fmt.Errorf("show alert: %w", err)
		}
		d.logger.Info().
			Str("alert_id", alert.ID).
			Str("title", alert.Title).
			Str("open_url", alert.Data.OpenURL).
			Msg("Notification shown")
		return alert, nil
	})
}

// Interact dismisses the alert and then either focuses a window already
// showing its openUrl or opens a new one there. Exactly one of the two
// happens.
func (d *Dispatcher) Interact(ev *event.Event, in Interaction) *event.Future[Action] {
	target := d.resolve(in.Alert.Data.OpenURL)

	return event.Go(ev, func(ctx context.Context) (Action, error) {
		if err := d.presenter.Close(ctx, in.Alert.ID); err != nil {
			notifyErrorsTotal.WithLabelValues("close").Inc()
			d.logger.Warn().Err(err).Str("alert_id", in.Alert.ID).Msg("Failed to close notification")
		}

		windows, err := d.clients.Windows(ctx)
		if err != nil {
			notifyErrorsTotal.WithLabelValues("windows").Inc()
			d.logger.Warn().Err(err).Msg("Failed to list windows, opening a new one")
			windows = nil
		}

		for _, w := range windows {
			if w.URL() != target {
				continue
			}
			if err := w.Focus(ctx); err != nil {
				notifyErrorsTotal.WithLabelValues("focus").Inc()
				return ActionFocus, fmt.Errorf("focus window: %w", err)
			}
			interactionsTotal.WithLabelValues(string(ActionFocus)).Inc()
			d.logger.Debug().Str("url", target).Msg("Focused existing window")
			return ActionFocus, nil
		}

		if _, err := d.clients.Open(ctx, target); err != nil {
			notifyErrorsTotal.WithLabelValues("open").Inc()
			return ActionOpen, fmt.Errorf("open window: %w", err)
		}
		interactionsTotal.WithLabelValues(string(ActionOpen)).Inc()
		d.logger.Debug().Str("url", target).Msg("Opened new window")
		return ActionOpen, nil
	})
}

// resolve makes openUrl absolute against the base.
func (d *Dispatcher) resolve(openURL string) string {
	if openURL == "" {
		openURL = DefaultOpenURL
	}
	ref, err := url.Parse(openURL)
	if err != nil {
		return openURL
	}
	return d.base.ResolveReference(ref).String()
}
