package session

import (
	"context"
	"fmt"

	"github.com/rbright/consult/internal/ipc"
)

// Handle serves control commands for the session that owns the socket.
func (s *State) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		v := s.Snapshot()
		return ipc.Response{
			OK:       true,
			State:    string(v.CaptureState),
			Message:  statusMessage(v),
			Input:    v.Input,
			Document: v.Filename,
		}
	case "record":
		if err := s.StartRecording(ctx); err != nil {
			return ipc.Response{OK: false, State: string(s.capture.State()), Error: UserMessage(err).Text}
		}
		return ipc.Response{OK: true, State: string(s.capture.State()), Message: "recording started"}
	case "stop":
		if !s.StopRecording() {
			return ipc.Response{OK: false, State: string(s.capture.State()), Error: "not recording"}
		}
		return ipc.Response{OK: true, State: string(s.capture.State()), Message: "stop requested"}
	case "summary":
		res, err := s.RequestSummary(ctx)
		if err != nil {
			return ipc.Response{OK: false, State: string(s.capture.State()), Error: UserMessage(err).Text}
		}
		return ipc.Response{OK: true, State: string(s.capture.State()), Message: "summary ready", Document: res.Document.Filename}
	default:
		return ipc.Response{OK: false, State: string(s.capture.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func statusMessage(v View) string {
	switch {
	case v.Recording:
		return fmt.Sprintf("recording %ds", v.ElapsedSecs)
	case v.Transcribing:
		return "transcribing"
	case v.Notice.Text != "":
		return v.Notice.Text
	default:
		return string(v.Mode) + " input"
	}
}
