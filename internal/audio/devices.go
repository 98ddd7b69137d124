// Package audio finds Pulse input sources, records 16 kHz mono PCM from one
// of them, and measures speech levels in the recorded frames.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const appName = "consult"

// Device is one Pulse input source as shown by `consult devices`.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Describe formats a device for logs and capture outcomes.
func (d Device) Describe() string {
	desc, id := strings.TrimSpace(d.Description), strings.TrimSpace(d.ID)
	switch {
	case desc == "":
		return id
	case id == "":
		return desc
	default:
		return fmt.Sprintf("%s (%s)", desc, id)
	}
}

// usable is true when the source can deliver audio right now.
func (d Device) usable() bool {
	return d.Available && !d.Muted
}

// Selection is the source a capture will record from. Warning is set when
// the preferred input could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns every Pulse input source.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceState(info.State),
			Available:   portAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input and audio.fallback against the live
// source list.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

// Open selects a source and starts recording from it.
func Open(ctx context.Context, input, fallback string) (*Stream, Selection, error) {
	sel, err := SelectDevice(ctx, input, fallback)
	if err != nil {
		return nil, Selection{}, err
	}
	stream, err := OpenStream(ctx, sel.Device)
	if err != nil {
		return nil, sel, err
	}
	return stream, sel, nil
}

// isDefault treats "" and "default" as "use the server's default source".
func isDefault(pref string) bool {
	return pref == "" || pref == "default"
}

// find returns the first device whose id or description contains pref.
func find(devices []Device, pref string) *Device {
	for i := range devices {
		id := strings.ToLower(devices[i].ID)
		desc := strings.ToLower(devices[i].Description)
		if strings.Contains(id, pref) || strings.Contains(desc, pref) {
			return &devices[i]
		}
	}
	return nil
}

func defaultDevice(devices []Device) *Device {
	for i := range devices {
		if devices[i].Default {
			return &devices[i]
		}
	}
	return nil
}

// choose prefers input, then fallback, then the default source. A preferred
// source that is muted or unplugged is skipped with a warning.
func choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}
	input = strings.ToLower(strings.TrimSpace(input))
	fallback = strings.ToLower(strings.TrimSpace(fallback))

	var primary *Device
	if isDefault(input) {
		primary = defaultDevice(devices)
		if primary == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
	} else if primary = find(devices, input); primary == nil {
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}
	if primary.usable() {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	var alt *Device
	if isDefault(fallback) {
		if alt = defaultDevice(devices); alt == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, reason)
		}
	} else if alt = find(devices, fallback); alt == nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
	}

	switch {
	case !alt.Available:
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", alt.ID)
	case alt.Muted:
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", alt.ID)
	}
	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

func sourceState(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// portAvailable reads the active port's availability. Pulse reports
// unknown=0, no=1, yes=2; sources without ports count as available.
func portAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
