// Package model defines core data structures for vibeshell.
package model

// IntegrationQuality describes how much shell integration telemetry a terminal provides.
// Values are ordered: QualityNone < QualityBasic < QualityRich.
type IntegrationQuality int

const (
	// QualityNone means no integration signals were observed.
	QualityNone IntegrationQuality = iota
	// QualityBasic means integration is present but command detection is unreliable.
	QualityBasic
	// QualityRich means full command detection is trusted.
	QualityRich
)

// String returns the string representation of an IntegrationQuality.
func (q IntegrationQuality) String() string {
	switch q {
	case QualityNone:
		return "none"
	case QualityBasic:
		return "basic"
	case QualityRich:
		return "rich"
	default:
		return "unknown"
	}
}

// SessionStatus represents the current state of a terminal session.
type SessionStatus string

const (
	// SessionStatusIdle indicates the session is not running.
	SessionStatusIdle SessionStatus = "idle"
	// SessionStatusRunning indicates the session is active.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusStopped indicates the session has been stopped.
	SessionStatusStopped SessionStatus = "stopped"
	// SessionStatusError indicates the session encountered an error.
	SessionStatusError SessionStatus = "error"
)

// ExecResult is the payload returned for one foreground execution.
type ExecResult struct {
	// Output is the sanitized command output.
	Output string `json:"result"`
	// ExitCode is set when the strategy could observe it.
	ExitCode *int `json:"exitCode,omitempty"`
	// Error carries a non-fatal problem encountered while collecting output.
	Error string `json:"error,omitempty"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	// Desktop enables desktop notifications via system APIs.
	Desktop bool `yaml:"desktop"`
	// WebhookURL receives a JSON POST for every event when set.
	WebhookURL string `yaml:"webhook_url,omitempty"`
}
