// Package gpu runs the trained classifier's forward pass on a WebGPU device.
package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrNoGPU is returned when no WebGPU adapter or device could be obtained.
var ErrNoGPU = errors.New("no usable GPU adapter")

// Context holds the single WebGPU context for the application
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Name     string
	once     sync.Once
	err      error
}

var (
	ctx Context

	logMu  sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger routes adapter selection and dispatch messages to l.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logMu.Lock()
	logger = l.Named("gpu")
	logMu.Unlock()
}

func currentLogger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// GetContext returns the singleton GPU context, initializing it if necessary.
// A failed initialization is remembered and returned on every later call.
func GetContext() (*Context, error) {
	ctx.once.Do(func() {
		ctx.err = ctx.setup()
	})
	if ctx.err != nil {
		return nil, ctx.err
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("%w: device or queue not initialized", ErrNoGPU)
	}
	return &ctx, nil
}

// Available reports whether a GPU context can be created.
func Available() bool {
	_, err := GetContext()
	return err == nil
}

func (c *Context) setup() error {
	l := currentLogger()
	c.Instance = wgpu.CreateInstance(nil)
	if c.Instance == nil {
		return fmt.Errorf("%w: failed to create WebGPU instance", ErrNoGPU)
	}

	// Prefer a discrete NVIDIA adapter when one is enumerated.
	for _, a := range c.Instance.EnumerateAdapters(nil) {
		info := a.GetInfo()
		l.Debug("found adapter",
			zap.String("name", info.Name),
			zap.String("vendor", info.VendorName),
			zap.Any("device_id", info.DeviceId),
		)
		if strings.Contains(strings.ToLower(info.Name), "nvidia") ||
			strings.Contains(strings.ToLower(info.VendorName), "nvidia") {
			c.Adapter = a
			break
		}
	}

	var err error
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		if c.Adapter != nil {
			break
		}
		c.Adapter, err = c.Instance.RequestAdapter(opts)
		if err != nil {
			l.Debug("adapter request failed", zap.Error(err))
		}
	}
	if c.Adapter == nil {
		return fmt.Errorf("%w: all adapter attempts failed: %v", ErrNoGPU, err)
	}

	info := c.Adapter.GetInfo()
	c.Name = info.Name
	l.Info("using GPU adapter", zap.String("name", info.Name), zap.String("vendor", info.VendorName))

	c.Device, err = c.Adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("%w: request device: %v", ErrNoGPU, err)
	}
	c.Queue = c.Device.GetQueue()
	return nil
}
