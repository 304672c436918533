package gpu

import (
	"fmt"
	"strings"

	"github.com/openfluke/webgpu/wgpu"
)

// Report summarises the adapter the predictor runs on.
type Report struct {
	Backend     string   `json:"backend"`
	AdapterType string   `json:"adapter_type"`
	VendorID    string   `json:"vendor_id_hex"`
	DeviceID    string   `json:"device_id_hex"`
	Name        string   `json:"name"`
	Driver      string   `json:"driver"`
	Workgroup   uint32   `json:"workgroup_x"` // dense shaders compile with this size
	Limits      Limits   `json:"limits"`
	Features    []string `json:"features"`
}

// Limits are the adapter limits that bound a dense dispatch.
type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

func limitsOf(l wgpu.SupportedLimits) Limits {
	return Limits{
		MaxComputeInvocationsPerWorkgroup: l.Limits.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupSizeX:          l.Limits.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupsPerDimension:  l.Limits.MaxComputeWorkgroupsPerDimension,
		MaxStorageBufferBindingSize:       l.Limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                     l.Limits.MaxBufferSize,
	}
}

// Describe reports on the adapter held by the shared context.
func Describe() (*Report, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	info := c.Adapter.GetInfo()
	limits := limitsOf(c.Adapter.GetLimits())

	var feats []string
	for _, f := range c.Adapter.EnumerateFeatures() {
		feats = append(feats, f.String())
	}
	return &Report{
		Backend:     info.BackendType.String(),
		AdapterType: info.AdapterType.String(),
		VendorID:    fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID:    fmt.Sprintf("0x%04x", info.DeviceId),
		Name:        strings.TrimSpace(info.Name),
		Driver:      strings.TrimSpace(info.DriverDescription),
		Workgroup:   chooseWorkgroup(limits),
		Limits:      limits,
		Features:    feats,
	}, nil
}

// chooseWorkgroup returns the largest power of two workgroup, up to 256, the
// adapter accepts in one dimension.
func chooseWorkgroup(l Limits) uint32 {
	for _, c := range []uint32{256, 128, 64, 32, 16, 8, 4, 1} {
		if c <= l.MaxComputeWorkgroupSizeX && c <= l.MaxComputeInvocationsPerWorkgroup {
			return c
		}
	}
	return 1
}

// maxBatch is the largest batch whose widest per-sample buffer, width float32
// values per example, still fits one storage binding, and whose outputs per
// example still fit a dispatch grid of workgroup-sized groups. Zero means even
// one example does not fit.
func maxBatch(l Limits, width, outputs int, workgroup uint32) int {
	if width <= 0 || outputs <= 0 || workgroup == 0 {
		return 0
	}
	perSample := uint64(width) * 4
	n := l.MaxStorageBufferBindingSize / perSample
	if l.MaxBufferSize > 0 {
		n = min(n, l.MaxBufferSize/perSample)
	}
	// One invocation per output value.
	if l.MaxComputeWorkgroupsPerDimension > 0 {
		n = min(n, uint64(l.MaxComputeWorkgroupsPerDimension)*uint64(workgroup)/uint64(outputs))
	}
	return int(n)
}
