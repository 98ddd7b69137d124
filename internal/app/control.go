package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbright/consult/internal/audio"
	"github.com/rbright/consult/internal/ipc"
)

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), "status")
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	line := resp.State
	if resp.Message != "" {
		line += ": " + resp.Message
	}
	if resp.Document != "" {
		line += " (" + resp.Document + ")"
	}
	fmt.Fprintln(r.Stdout, line)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no consult form is running; start one with `consult tui`")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward sends command to a running form. handled is false when no
// form owns the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	client := ipc.Client{Path: socketPath, Timeout: 220 * time.Millisecond}
	resp, err := client.Command(ctx, command)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.IsNotRunning(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
