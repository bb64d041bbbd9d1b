// Package ipc carries single-line JSON commands between voyc clients and the
// running daemon over a unix socket.
package ipc

// Commands understood by the daemon.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
	CommandReset  = "reset"
	CommandReload = "reload"
)

// Commands lists every command in help order.
func Commands() []string {
	return []string{CommandToggle, CommandStop, CommandCancel, CommandReset, CommandReload, CommandStatus}
}

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Cycle is the in-flight dictation id, if any.
	Cycle string `json:"cycle,omitempty"`
	// Last summarizes the most recently finished cycle.
	Last *CycleSummary `json:"last,omitempty"`
}

// CycleSummary is the status view of a finished dictation.
type CycleSummary struct {
	ID        string `json:"id"`
	Outcome   string `json:"outcome"`
	Delivery  string `json:"delivery,omitempty"`
	Chars     int    `json:"chars"`
	STTMS     int64  `json:"stt_ms"`
	TotalMS   int64  `json:"total_ms"`
	Error     string `json:"error,omitempty"`
	AlertsHit int    `json:"alerts,omitempty"`
}
