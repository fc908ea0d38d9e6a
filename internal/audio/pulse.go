// Package audio handles output/input device discovery, default-device
// routing, and PCM playback through PulseAudio.
package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const applicationName = "promptvoice"

// Direction distinguishes playback sinks from capture sources.
type Direction string

const (
	// Output devices are Pulse sinks.
	Output Direction = "output"
	// Input devices are Pulse sources.
	Input Direction = "input"
)

// Device describes one Pulse sink or source.
type Device struct {
	ID          string
	Description string
	Direction   Direction
	State       string
	Available   bool
	Muted       bool
	Default     bool
	// Module is the Pulse module owning a sink, used to replace stale aggregates.
	Module uint32
}

// pulseSystem talks to the Pulse server, one connection per operation.
type pulseSystem struct{}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(applicationName),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

func (pulseSystem) listDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var defaultSinkID, defaultSourceID string
	if sink, err := client.DefaultSink(); err == nil {
		defaultSinkID = sink.ID()
	}
	if source, err := client.DefaultSource(); err == nil {
		defaultSourceID = source.ID()
	}

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos)+len(sourceInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			Direction:   Output,
			State:       deviceStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultSinkID,
			Module:      sink.ModuleIndex,
		})
	}
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			Direction:   Input,
			State:       deviceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultSourceID,
		})
	}
	return devices, nil
}

func (pulseSystem) setDefault(_ context.Context, direction Direction, id string) error {
	client, err := newPulseClient()
	if err != nil {
		return err
	}
	defer client.Close()

	switch direction {
	case Output:
		if err := client.RawRequest(&pulseproto.SetDefaultSink{SinkName: id}, nil); err != nil {
			return fmt.Errorf("set default sink %q: %w", id, err)
		}
	case Input:
		if err := client.RawRequest(&pulseproto.SetDefaultSource{SourceName: id}, nil); err != nil {
			return fmt.Errorf("set default source %q: %w", id, err)
		}
	default:
		return fmt.Errorf("unknown device direction %q", direction)
	}
	return nil
}

func (pulseSystem) loadCombineSink(_ context.Context, sinkName string, members []string) (uint32, error) {
	client, err := newPulseClient()
	if err != nil {
		return 0, err
	}
	defer client.Close()

	var reply pulseproto.LoadModuleReply
	err = client.RawRequest(&pulseproto.LoadModule{
		Name: "module-combine-sink",
		Args: combineSinkArgs(sinkName, members),
	}, &reply)
	if err != nil {
		return 0, fmt.Errorf("load module-combine-sink: %w", err)
	}
	return reply.ModuleIndex, nil
}

func (pulseSystem) unloadModule(_ context.Context, index uint32) error {
	client, err := newPulseClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.RawRequest(&pulseproto.UnloadModule{ModuleIndex: index}, nil); err != nil {
		return fmt.Errorf("unload module %d: %w", index, err)
	}
	return nil
}

func (pulseSystem) aggregateMembers(_ context.Context, module uint32) ([]string, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var reply pulseproto.GetModuleInfoReply
	if err := client.RawRequest(&pulseproto.GetModuleInfo{ModuleIndex: module}, &reply); err != nil {
		return nil, fmt.Errorf("get module %d info: %w", module, err)
	}
	if reply.ModuleName != "module-combine-sink" {
		return nil, fmt.Errorf("module %d is %s, not module-combine-sink", module, reply.ModuleName)
	}
	return combineSinkMembers(reply.ModuleArgs), nil
}

// combineSinkMembers extracts the slaves list from module-combine-sink arguments.
func combineSinkMembers(args string) []string {
	for _, field := range strings.Fields(args) {
		value, ok := strings.CutPrefix(field, "slaves=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		if value == "" {
			return nil
		}
		return strings.Split(value, ",")
	}
	return nil
}

// combineSinkArgs renders module-combine-sink arguments.
func combineSinkArgs(sinkName string, members []string) string {
	return fmt.Sprintf(
		"sink_name=%s slaves=%s sink_properties=device.description=%s",
		sinkName,
		strings.Join(members, ","),
		sinkName,
	)
}

// deviceStateString maps Pulse sink/source state constants to human-readable values.
func deviceStateString(state uint32) string {
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

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		return port.Available == 0 || port.Available == 2
	}
	return true
}
