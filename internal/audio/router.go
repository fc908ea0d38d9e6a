package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/rbright/promptvoice/internal/config"
)

// MonitorOutputName names the aggregate output created for monitoring.
const MonitorOutputName = "promptvoice-monitor"

// system is the OS audio surface the Router drives.
type system interface {
	listDevices(ctx context.Context) ([]Device, error)
	setDefault(ctx context.Context, direction Direction, id string) error
	loadCombineSink(ctx context.Context, sinkName string, members []string) (uint32, error)
	unloadModule(ctx context.Context, index uint32) error
	aggregateMembers(ctx context.Context, module uint32) ([]string, error)
}

// Router lists devices and applies narration output routing.
type Router struct {
	sys    system
	logger *slog.Logger

	mu      sync.Mutex
	modules []uint32
}

// NewRouter returns a Router backed by the local Pulse server.
func NewRouter(logger *slog.Logger) *Router {
	return newRouter(pulseSystem{}, logger)
}

func newRouter(sys system, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{sys: sys, logger: logger}
}

// ListDevices returns every known sink and source. Query failures yield an
// empty list.
func (r *Router) ListDevices(ctx context.Context) []Device {
	devices, err := r.sys.listDevices(ctx)
	if err != nil {
		r.logger.Warn("list audio devices failed", "error", err.Error())
		return []Device{}
	}
	return devices
}

// SetDefaultOutput makes the named sink the system default.
func (r *Router) SetDefaultOutput(ctx context.Context, name string) error {
	return r.setDefault(ctx, Output, name)
}

// SetDefaultInput makes the named source the system default.
func (r *Router) SetDefaultInput(ctx context.Context, name string) error {
	return r.setDefault(ctx, Input, name)
}

func (r *Router) setDefault(ctx context.Context, direction Direction, name string) error {
	device, err := FindDevice(r.ListDevices(ctx), direction, name)
	if err != nil {
		return err
	}
	if err := r.sys.setDefault(ctx, direction, device.ID); err != nil {
		return err
	}
	r.logger.Info("default device set", "direction", string(direction), "device", device.ID)
	return nil
}

// CreateAggregateOutput creates one output that plays to every member and
// returns its device name. Every member must resolve. An existing aggregate
// with the same name is reused only when it mixes exactly the resolved
// members; otherwise it is unloaded and recreated.
func (r *Router) CreateAggregateOutput(ctx context.Context, name string, members []string) (string, error) {
	sinkName := sanitizeSinkName(name)
	if sinkName == "" {
		return "", errors.New("aggregate output name must not be empty")
	}

	devices := r.ListDevices(ctx)
	var existing *Device
	candidates := make([]Device, 0, len(devices))
	for i := range devices {
		if devices[i].Direction == Output && devices[i].ID == sinkName {
			existing = &devices[i]
			continue
		}
		candidates = append(candidates, devices[i])
	}

	ids := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		device, err := FindDevice(candidates, Output, member)
		if err != nil {
			return "", err
		}
		if _, dup := seen[device.ID]; dup {
			continue
		}
		seen[device.ID] = struct{}{}
		ids = append(ids, device.ID)
	}
	if len(ids) == 0 {
		return "", errors.New("aggregate output needs at least one member device")
	}

	if existing != nil {
		current, err := r.sys.aggregateMembers(ctx, existing.Module)
		if err == nil && sameMembers(current, ids) {
			r.logger.Info("aggregate output reused", "name", sinkName, "members", strings.Join(ids, ","))
			return sinkName, nil
		}
		if err := r.sys.unloadModule(ctx, existing.Module); err != nil {
			return "", fmt.Errorf("replace stale aggregate output %q: %w", sinkName, err)
		}
		r.forgetModule(existing.Module)
		r.logger.Info("stale aggregate output unloaded", "name", sinkName, "members", strings.Join(current, ","), "module", existing.Module)
	}

	index, err := r.sys.loadCombineSink(ctx, sinkName, ids)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.modules = append(r.modules, index)
	r.mu.Unlock()

	r.logger.Info("aggregate output created", "name", sinkName, "members", strings.Join(ids, ","), "module", index)
	return sinkName, nil
}

func (r *Router) forgetModule(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.modules[:0]
	for _, m := range r.modules {
		if m != index {
			kept = append(kept, m)
		}
	}
	r.modules = kept
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// SetupRouting applies spec and reports a one-line diagnostic. Failures are
// never fatal to the caller.
//
// The output step runs only when an output is configured. Monitoring runs
// whenever it is enabled with a device, mixing whichever of the two devices
// are configured.
func (r *Router) SetupRouting(ctx context.Context, spec config.AudioRoutingSpec) (bool, string) {
	if spec.OutputDevice != "" {
		if err := r.SetDefaultOutput(ctx, spec.OutputDevice); err != nil {
			r.logger.Warn("set output device failed", "device", spec.OutputDevice, "error", err.Error())
			return false, fmt.Sprintf("failed to set output device to %q: %v", spec.OutputDevice, err)
		}
	}

	if !spec.EnableMonitoring || spec.MonitoringDevice == "" {
		if spec.OutputDevice == "" {
			return true, "audio routing unchanged; no output device configured"
		}
		return true, "audio routing configured"
	}

	members := make([]string, 0, 2)
	if spec.OutputDevice != "" {
		members = append(members, spec.OutputDevice)
	}
	members = append(members, spec.MonitoringDevice)

	handle, err := r.CreateAggregateOutput(ctx, MonitorOutputName, members)
	if err != nil {
		r.logger.Warn("create monitoring output failed", "monitoring", spec.MonitoringDevice, "error", err.Error())
		return false, fmt.Sprintf("failed to create monitoring output with %q: %v", spec.MonitoringDevice, err)
	}
	if err := r.SetDefaultOutput(ctx, handle); err != nil {
		r.logger.Warn("set monitoring output failed", "device", handle, "error", err.Error())
		return false, fmt.Sprintf("failed to set monitoring output as default: %v", err)
	}

	return true, "audio routing configured with monitoring"
}

// Close unloads aggregate outputs created by this Router.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	modules := r.modules
	r.modules = nil
	r.mu.Unlock()

	var errs []error
	for i := len(modules) - 1; i >= 0; i-- {
		if err := r.sys.unloadModule(ctx, modules[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FindDevice returns the device of direction matching term: exact id or
// description first, then substring.
func FindDevice(devices []Device, direction Direction, term string) (Device, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return Device{}, fmt.Errorf("%s device name must not be empty", direction)
	}

	var partial *Device
	for i := range devices {
		device := &devices[i]
		if device.Direction != direction {
			continue
		}
		if strings.ToLower(device.ID) == needle || strings.ToLower(device.Description) == needle {
			return *device, nil
		}
		if partial == nil && deviceMatches(*device, needle) {
			partial = device
		}
	}
	if partial != nil {
		return *partial, nil
	}
	return Device{}, fmt.Errorf("%s device %q not found", direction, term)
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

var unsafeSinkChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeSinkName(name string) string {
	return strings.Trim(unsafeSinkChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
}
