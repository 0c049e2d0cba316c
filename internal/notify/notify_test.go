package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/deltabackup/internal/config"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestDispatcherRoutesByStatus(t *testing.T) {
	onlyFailures := &recorder{}
	everything := &recorder{}

	d := &Dispatcher{}
	d.Add(onlyFailures, false, true)
	d.Add(everything, true, true)

	ctx := context.Background()
	require.NoError(t, d.Notify(ctx, Event{RunID: "1", Status: StatusSuccess}))
	require.NoError(t, d.Notify(ctx, Event{RunID: "2", Status: StatusFailure}))

	require.Len(t, onlyFailures.events, 1)
	assert.Equal(t, "2", onlyFailures.events[0].RunID)
	assert.Len(t, everything.events, 2)
}

func TestDispatcherJoinsErrors(t *testing.T) {
	d := &Dispatcher{}
	d.Add(&recorder{err: errors.New("smtp down")}, true, true)
	d.Add(&recorder{}, true, true)

	err := d.Notify(context.Background(), Event{Status: StatusFailure})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route 0: smtp down")
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NoError(t, d.Notify(context.Background(), Event{Status: StatusFailure}))
}

func TestNewDispatcherValidates(t *testing.T) {
	_, err := NewDispatcher([]config.NotificationConfig{{Type: "webhook", On: []string{"sometimes"}, Config: config.NotificationDetails{URL: "http://x"}}})
	assert.ErrorContains(t, err, "unsupported value")

	_, err = NewDispatcher([]config.NotificationConfig{{Type: "pager", On: []string{"both"}}})
	assert.ErrorContains(t, err, "unsupported notification type")

	_, err = NewDispatcher([]config.NotificationConfig{{Type: "email", On: []string{"failure"}, Config: config.NotificationDetails{SMTPHost: "mx"}}})
	assert.ErrorContains(t, err, "smtp_port")

	d, err := NewDispatcher([]config.NotificationConfig{{Type: "webhook", On: []string{"both"}, Config: config.NotificationDetails{URL: "http://hooks.local/x"}}})
	require.NoError(t, err)
	assert.Len(t, d.routes, 1)
}

func TestWebhookPostsEvent(t *testing.T) {
	var got Event
	var auth, runID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		runID = r.Header.Get("X-Deltabackup-Run-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhook(srv.URL, map[string]string{"Authorization": "Bearer t0k"})
	require.NoError(t, err)

	ev := Event{RunID: "abc", Status: StatusFailure, Dumped: []string{"app (custom)"}, Failed: []FailedEvent{{Target: "orders (schema)", Error: "boom"}}}
	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, "Bearer t0k", auth)
	assert.Equal(t, "abc", runID)
	assert.Equal(t, ev.RunID, got.RunID)
	assert.Equal(t, ev.Failed, got.Failed)
}

func TestWebhookNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := NewWebhook(srv.URL, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, n.Notify(context.Background(), Event{}), "502")
}

func TestNewWebhookRejectsNonHTTP(t *testing.T) {
	_, err := NewWebhook("ftp://hooks.local", nil)
	assert.ErrorContains(t, err, "http or https")

	_, err = NewWebhook("  ", nil)
	assert.ErrorContains(t, err, "config.url is required")
}

func TestNewEmailValidatesAddresses(t *testing.T) {
	_, err := NewEmail("mx.local", 25, "not an address", "ops@example.com", "", "")
	assert.ErrorContains(t, err, "config.from")

	_, err = NewEmail("mx.local", 25, "backup@example.com", "ops@example.com, nope", "", "")
	assert.ErrorContains(t, err, `config.to "nope"`)

	n, err := NewEmail("mx.local", 25, "backup@example.com", "ops@example.com, dba@example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com", "dba@example.com"}, n.(*emailNotifier).to)
}

func TestEmailBody(t *testing.T) {
	body := buildEmailBody(Event{
		RunID:   "r1",
		Status:  StatusFailure,
		Dumped:  []string{"globals"},
		Skipped: nil,
		Failed:  []FailedEvent{{Target: "app (custom)", Error: "pg_dump failed"}},
	})
	assert.Contains(t, body, "host: local")
	assert.Contains(t, body, "dumped: globals")
	assert.Contains(t, body, "skipped: none")
	assert.Contains(t, body, "FAILED app (custom): pg_dump failed")
}
