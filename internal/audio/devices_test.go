package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func headsetAndLaptop() []Device {
	return []Device{
		{ID: "alsa_input.usb-headset", Description: "USB Headset Mono", Available: true, Default: true},
		{ID: "alsa_input.laptop", Description: "Built-in Microphone", Available: true},
	}
}

func TestChoose(t *testing.T) {
	mutedHeadset := headsetAndLaptop()
	mutedHeadset[0].Muted = true
	unplugged := headsetAndLaptop()
	unplugged[1].Available = false

	tests := []struct {
		name     string
		devices  []Device
		input    string
		fallback string
		wantID   string
		warning  string
		errText  string
	}{
		{name: "default source", devices: headsetAndLaptop(), input: "default", wantID: "alsa_input.usb-headset"},
		{name: "empty preference is default", devices: headsetAndLaptop(), wantID: "alsa_input.usb-headset"},
		{name: "match by description", devices: headsetAndLaptop(), input: "built-in", wantID: "alsa_input.laptop"},
		{name: "muted input uses fallback", devices: mutedHeadset, input: "headset", fallback: "laptop", wantID: "alsa_input.laptop", warning: "muted"},
		{name: "unknown input", devices: headsetAndLaptop(), input: "webcam", errText: "did not match"},
		{name: "muted default with default fallback", devices: mutedHeadset, errText: "muted"},
		{name: "fallback missing", devices: mutedHeadset, input: "headset", fallback: "webcam", errText: "not found"},
		{name: "unplugged input and fallback", devices: unplugged, input: "laptop", fallback: "laptop", errText: "not available"},
		{name: "no devices", errText: "no audio input devices"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := choose(tc.devices, tc.input, tc.fallback)
			if tc.errText != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errText)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, sel.Device.ID)
			if tc.warning == "" {
				require.Empty(t, sel.Warning)
				require.False(t, sel.Fallback)
			} else {
				require.Contains(t, sel.Warning, tc.warning)
				require.True(t, sel.Fallback)
			}
		})
	}
}

func TestDeviceDescribe(t *testing.T) {
	require.Equal(t, "Mic (mic-1)", Device{ID: "mic-1", Description: "Mic"}.Describe())
	require.Equal(t, "mic-1", Device{ID: "mic-1"}.Describe())
	require.Equal(t, "Mic", Device{Description: " Mic "}.Describe())
}

func TestPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	ctx := context.Background()

	_, err := ListDevices(ctx)
	require.Error(t, err)
	_, err = SelectDevice(ctx, "default", "default")
	require.Error(t, err)
	_, _, err = Open(ctx, "default", "default")
	require.Error(t, err)
}

func TestSourceState(t *testing.T) {
	require.Equal(t, "running", sourceState(0))
	require.Equal(t, "idle", sourceState(1))
	require.Equal(t, "suspended", sourceState(2))
	require.Equal(t, "unknown(7)", sourceState(7))
}

func TestPortAvailable(t *testing.T) {
	require.False(t, portAvailable(nil))
	require.True(t, portAvailable(&pulseproto.GetSourceInfoReply{}))

	plugged := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	withPorts(plugged, map[string]uint32{"mic": 2, "line": 1})
	require.True(t, portAvailable(plugged))

	unplugged := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	withPorts(unplugged, map[string]uint32{"mic": 1})
	require.False(t, portAvailable(unplugged))
}

// withPorts fills the reply's anonymous port structs by field name.
func withPorts(reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	field := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	list := reflect.MakeSlice(field.Type(), 0, len(ports))
	for name, avail := range ports {
		item := reflect.New(field.Type().Elem()).Elem()
		item.FieldByName("Name").SetString(name)
		item.FieldByName("Available").SetUint(uint64(avail))
		list = reflect.Append(list, item)
	}
	field.Set(list)
}
