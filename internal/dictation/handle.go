package dictation

import (
	"context"
	"fmt"

	"github.com/rbright/voyc/internal/fsm"
	"github.com/rbright/voyc/internal/ipc"
)

// Handle serves the dictation subset of the IPC protocol. Reload belongs to
// the daemon and is answered with an error here.
func (o *Orchestrator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		st  Status
		err error
	)
	switch req.Command {
	case ipc.CommandStatus:
		st, err = o.Status(ctx)
	case ipc.CommandToggle:
		st, err = o.Toggle(ctx, fsm.ReasonHotkey)
	case ipc.CommandStop:
		st, err = o.StopCapture(ctx)
	case ipc.CommandCancel:
		st, err = o.Abort(ctx)
	case ipc.CommandReset:
		st, err = o.Reset(ctx)
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}

	resp := StatusResponse(st)
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}
	return resp
}

// StatusResponse renders a Status for IPC clients.
func StatusResponse(st Status) ipc.Response {
	resp := ipc.Response{
		OK:      true,
		State:   string(st.State),
		Message: st.Error,
		Cycle:   st.CycleID,
	}
	if last := st.Last; last != nil {
		summary := &ipc.CycleSummary{
			ID:        last.ID,
			Outcome:   last.Outcome,
			Delivery:  string(last.Delivery),
			Chars:     len(last.Text),
			STTMS:     last.Latency.STT().Milliseconds(),
			TotalMS:   last.Latency.Total().Milliseconds(),
			AlertsHit: len(last.Alerts),
		}
		if last.Err != nil {
			summary.Error = last.Err.Error()
		}
		resp.Last = summary
	}
	return resp
}
