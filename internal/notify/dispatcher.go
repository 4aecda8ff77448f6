// Package notify reports finished background executions.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// EventType represents a notification event type.
type EventType string

const (
	EventCommandSucceeded EventType = "command_succeeded"
	EventCommandFailed    EventType = "command_failed"
	EventCommandFinished  EventType = "command_finished"
)

// Event describes a notification event.
type Event struct {
	ExecutionID string
	CommandLine string
	Type        EventType
	Title       string
	Message     string
	ExitCode    *int
	Timestamp   time.Time
}

// BackgroundFinished builds the event for a finished background execution.
func BackgroundFinished(info runtime.BackgroundInfo) Event {
	ev := Event{
		ExecutionID: info.ID,
		CommandLine: info.CommandLine,
		Type:        EventCommandFinished,
		Title:       "Background command finished",
		Message:     info.CommandLine,
		ExitCode:    info.ExitCode,
		Timestamp:   time.Now(),
	}
	if info.ExitCode != nil {
		if *info.ExitCode == 0 {
			ev.Type = EventCommandSucceeded
		} else {
			ev.Type = EventCommandFailed
			ev.Title = fmt.Sprintf("Background command failed (exit %d)", *info.ExitCode)
		}
	}
	return ev
}

// Dispatcher sends notifications to configured channels.
type Dispatcher struct {
	client  *http.Client
	desktop func(title, message string) error
	log     *zap.Logger
}

// NewDispatcher creates a Dispatcher with sensible defaults.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		desktop: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		log: log,
	}
}

// Dispatch sends a notification event using the given config.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg model.NotificationConfig, event Event) {
	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = "vibeshell"
	}
	message := strings.TrimSpace(event.Message)
	if message == "" {
		message = string(event.Type)
	}
	if len(message) > 800 {
		message = message[:800] + "..."
	}

	if cfg.Desktop {
		if err := d.desktop(title, message); err != nil {
			d.log.Warn("desktop notification failed", zap.Error(err))
		}
	}

	if cfg.WebhookURL != "" {
		if err := d.post(ctx, cfg.WebhookURL, title, message, event); err != nil {
			d.log.Warn("webhook notification failed", zap.String("url", cfg.WebhookURL), zap.Error(err))
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, url, title, message string, event Event) error {
	payload := map[string]any{
		"executionId": event.ExecutionID,
		"command":     event.CommandLine,
		"event":       event.Type,
		"title":       title,
		"message":     message,
		"timestamp":   event.Timestamp.Unix(),
	}
	if event.ExitCode != nil {
		payload["exitCode"] = *event.ExitCode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
