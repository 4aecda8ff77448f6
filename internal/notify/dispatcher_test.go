package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

func TestBackgroundFinished(t *testing.T) {
	code := 2
	ev := BackgroundFinished(runtime.BackgroundInfo{ID: "e1", CommandLine: "make", ExitCode: &code})
	assert.Equal(t, EventCommandFailed, ev.Type)
	assert.Equal(t, "Background command failed (exit 2)", ev.Title)

	zero := 0
	assert.Equal(t, EventCommandSucceeded, BackgroundFinished(runtime.BackgroundInfo{ExitCode: &zero}).Type)
	assert.Equal(t, EventCommandFinished, BackgroundFinished(runtime.BackgroundInfo{}).Type)
}

func TestDispatch_DesktopAndWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher(nil)
	var titles []string
	d.desktop = func(title, message string) error {
		titles = append(titles, title)
		return nil
	}

	code := 1
	ev := BackgroundFinished(runtime.BackgroundInfo{ID: "e1", CommandLine: "npm test", ExitCode: &code})
	d.Dispatch(context.Background(), model.NotificationConfig{Desktop: true, WebhookURL: srv.URL}, ev)

	assert.Equal(t, []string{"Background command failed (exit 1)"}, titles)
	assert.Equal(t, "e1", got["executionId"])
	assert.Equal(t, "npm test", got["message"])
	assert.Equal(t, float64(1), got["exitCode"])
}

func TestDispatch_Disabled(t *testing.T) {
	d := NewDispatcher(nil)
	called := false
	d.desktop = func(string, string) error {
		called = true
		return nil
	}
	d.Dispatch(context.Background(), model.NotificationConfig{}, Event{Type: EventCommandFinished})
	assert.False(t, called)
}
