package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/deltabackup/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event summarises one backup run. It is sent once, after the snapshot has
// been persisted (or failed to be).
type Event struct {
	RunID         string        `json:"run_id"`
	Host          string        `json:"host"`
	Status        string        `json:"status"`
	Duration      string        `json:"duration"`
	Dumped        []string      `json:"dumped"`
	Skipped       []string      `json:"skipped"`
	Failed        []FailedEvent `json:"failed,omitempty"`
	Bytes         int64         `json:"bytes"`
	SnapshotSaved bool          `json:"snapshot_saved"`
	Error         string        `json:"error,omitempty"`
}

type FailedEvent struct {
	Target string `json:"target"`
	Error  string `json:"error"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type route struct {
	onSuccess bool
	onFailure bool
	notifier  Notifier
}

type Dispatcher struct {
	routes []route
}

func NewDispatcher(cfgs []config.NotificationConfig) (*Dispatcher, error) {
	routes := make([]route, 0, len(cfgs))
	for i, n := range cfgs {
		onSuccess, onFailure, err := parseOn(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}

		var nf Notifier
		switch strings.ToLower(strings.TrimSpace(n.Type)) {
		case "webhook":
			nf, err = NewWebhook(n.Config.URL, n.Config.Headers)
		case "email":
			nf, err = NewEmail(n.Config.SMTPHost, n.Config.SMTPPort, n.Config.From, n.Config.To, n.Config.Username, n.Config.Password)
		default:
			return nil, fmt.Errorf("notifications[%d]: unsupported notification type %q", i, n.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("notifications[%d] %s: %w", i, n.Type, err)
		}
		routes = append(routes, route{onSuccess: onSuccess, onFailure: onFailure, notifier: nf})
	}
	return &Dispatcher{routes: routes}, nil
}

// Add registers an extra route; used for notifiers built outside config.
func (d *Dispatcher) Add(n Notifier, onSuccess, onFailure bool) {
	d.routes = append(d.routes, route{onSuccess: onSuccess, onFailure: onFailure, notifier: n})
}

// Notify fans event out to every interested route and joins their errors.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}

	var errs []error
	for i, r := range d.routes {
		if !r.wants(event.Status) {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification route %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (r route) wants(status string) bool {
	switch status {
	case StatusSuccess:
		return r.onSuccess
	case StatusFailure:
		return r.onFailure
	default:
		return false
	}
}

func parseOn(raw []string) (bool, bool, error) {
	if len(raw) == 0 {
		return false, false, fmt.Errorf("on must include success, failure, or both")
	}

	var onSuccess, onFailure bool
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "success":
			onSuccess = true
		case "failure":
			onFailure = true
		case "both":
			onSuccess, onFailure = true, true
		default:
			return false, false, fmt.Errorf("on contains unsupported value %q", v)
		}
	}
	return onSuccess, onFailure, nil
}
