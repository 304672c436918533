package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/zap"
)

// DefaultWorkgroupSize is used when no adapter limits have been applied.
const DefaultWorkgroupSize = 256

// Activation selects the elementwise function applied after a dense layer.
type Activation int

const (
	ActNone Activation = iota
	ActReLU
	ActLeakyReLU
	ActSigmoid
	ActTanh
)

// DenseSpec defines the configuration for a single dense layer
type DenseSpec struct {
	InputSize  int
	OutputSize int
	Activation Activation
	Weights    []float32 // row-major [OutputSize, InputSize]
	Biases     []float32 // [OutputSize]
}

// Validate checks the weight and bias lengths against the layer sizes.
func (s DenseSpec) Validate() error {
	if s.InputSize <= 0 || s.OutputSize <= 0 {
		return fmt.Errorf("dense layer %dx%d: sizes must be > 0", s.OutputSize, s.InputSize)
	}
	if len(s.Weights) != s.InputSize*s.OutputSize {
		return fmt.Errorf("dense layer %dx%d: %d weights", s.OutputSize, s.InputSize, len(s.Weights))
	}
	if len(s.Biases) != s.OutputSize {
		return fmt.Errorf("dense layer %dx%d: %d biases", s.OutputSize, s.InputSize, len(s.Biases))
	}
	return nil
}

// DenseLayer holds resources for a single layer execution
type DenseLayer struct {
	Spec          DenseSpec
	BatchSize     int
	WorkgroupSize uint32 // 0 = DefaultWorkgroupSize

	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup

	InputBuffer  *wgpu.Buffer
	OutputBuffer *wgpu.Buffer
	WeightBuffer *wgpu.Buffer
	BiasBuffer   *wgpu.Buffer

	WorkgroupsX uint32
}

func activationWGSL(a Activation) string {
	switch a {
	case ActReLU:
		return "return max(x, 0.0);"
	case ActLeakyReLU:
		return "return select(0.01 * x, x, x >= 0.0);"
	case ActSigmoid:
		return "return 1.0 / (1.0 + exp(-x));"
	case ActTanh:
		return "return tanh(x);"
	default:
		return "return x;"
	}
}

// GenerateShader creates WGSL for this layer. Each invocation computes one
// output unit of one sample; input and output are sample-major.
func (l *DenseLayer) GenerateShader() string {
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read_write> output : array<f32>;
		@group(0) @binding(2) var<storage, read> weights : array<f32>;
		@group(0) @binding(3) var<storage, read> biases : array<f32>;

		fn activate(x: f32) -> f32 {
			%s
		}

		@compute @workgroup_size(%d)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			let idx = gid.x;
			let n_out = %du;
			let n_in = %du;

			if (idx >= arrayLength(&output)) {
				return;
			}

			// idx = sample_idx * n_out + out_idx
			let sample_idx = idx / n_out;
			let out_idx = idx %% n_out;

			var sum: f32 = biases[out_idx];
			let weight_offset = out_idx * n_in;
			let input_offset = sample_idx * n_in;

			for (var i: u32 = 0u; i < n_in; i++) {
				sum += weights[weight_offset + i] * input[input_offset + i];
			}

			output[idx] = activate(sum);
		}
	`, activationWGSL(l.Spec.Activation), l.workgroup(), l.Spec.OutputSize, l.Spec.InputSize)
}

func (l *DenseLayer) workgroup() uint32 {
	if l.WorkgroupSize == 0 {
		return DefaultWorkgroupSize
	}
	return l.WorkgroupSize
}

// dispatchSize is the number of workgroups covering every output of the batch.
func (l *DenseLayer) dispatchSize() uint32 {
	total := uint32(l.Spec.OutputSize * l.batch())
	wg := l.workgroup()
	return (total + wg - 1) / wg
}

func (l *DenseLayer) batch() int {
	if l.BatchSize <= 0 {
		return 1
	}
	return l.BatchSize
}

func (l *DenseLayer) allocateBuffers(c *Context, label string) error {
	currentLogger().Debug("allocating buffers", zap.String("layer", label), zap.Int("batch", l.BatchSize))
	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	var err error

	if l.InputBuffer, err = newEmptyBuffer(c, label+"_In", l.Spec.InputSize*l.batch(), storage); err != nil {
		return err
	}
	if l.OutputBuffer, err = newEmptyBuffer(c, label+"_Out", l.Spec.OutputSize*l.batch(), storage); err != nil {
		return err
	}
	if l.WeightBuffer, err = newFloatBuffer(c, label+"_W", l.Spec.Weights, storage); err != nil {
		return err
	}
	if l.BiasBuffer, err = newFloatBuffer(c, label+"_B", l.Spec.Biases, storage); err != nil {
		return err
	}
	return nil
}

func (l *DenseLayer) compile(c *Context, label string) error {
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: l.GenerateShader()},
	})
	if err != nil {
		return fmt.Errorf("shader compile: %w", err)
	}
	defer module.Release()

	// Explicit layout; "auto" layouts are unreliable in WASM builds.
	l.bindGroupLayout, err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label + "_BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Input
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // Output
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Weights
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Biases
		},
	})
	if err != nil {
		return fmt.Errorf("create bgl: %w", err)
	}

	pipelineLayout, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + "_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{l.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	l.pipeline, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label + "_Pipe",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline create: %w", err)
	}

	l.WorkgroupsX = l.dispatchSize()
	return nil
}

func (l *DenseLayer) createBindGroup(c *Context, label string) error {
	var err error
	l.bindGroup, err = c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + "_Bind",
		Layout: l.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: l.InputBuffer, Size: l.InputBuffer.GetSize()},
			{Binding: 1, Buffer: l.OutputBuffer, Size: l.OutputBuffer.GetSize()},
			{Binding: 2, Buffer: l.WeightBuffer, Size: l.WeightBuffer.GetSize()},
			{Binding: 3, Buffer: l.BiasBuffer, Size: l.BiasBuffer.GetSize()},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	return nil
}

// dispatch records the compute pass for this layer
func (l *DenseLayer) dispatch(enc *wgpu.CommandEncoder) {
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.bindGroup, nil)
	pass.DispatchWorkgroups(l.WorkgroupsX, 1, 1)
	pass.End()
}

// Release frees the layer's GPU resources.
func (l *DenseLayer) Release() {
	for _, b := range []*wgpu.Buffer{l.InputBuffer, l.OutputBuffer, l.WeightBuffer, l.BiasBuffer} {
		if b != nil {
			b.Destroy()
		}
	}
	if l.bindGroup != nil {
		l.bindGroup.Release()
	}
	if l.pipeline != nil {
		l.pipeline.Release()
	}
}

// Sequence runs dense layers back to back, feeding each output buffer into
// the next layer's input.
type Sequence struct {
	Layers        []*DenseLayer
	BatchSize     int
	WorkgroupSize uint32 // 0 = chosen from the adapter limits at Build

	staging *wgpu.Buffer
	built   bool
}

// NewSequence creates a sequence for batchSize samples per dispatch.
func NewSequence(specs []DenseSpec, batchSize int) (*Sequence, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no layers")
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	layers := make([]*DenseLayer, len(specs))
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if i > 0 && spec.InputSize != specs[i-1].OutputSize {
			return nil, fmt.Errorf("layer %d takes %d inputs, previous layer emits %d",
				i, spec.InputSize, specs[i-1].OutputSize)
		}
		layers[i] = &DenseLayer{Spec: spec, BatchSize: batchSize}
	}
	return &Sequence{Layers: layers, BatchSize: batchSize}, nil
}

// InputSize is the number of features per sample.
func (s *Sequence) InputSize() int { return s.Layers[0].Spec.InputSize }

// OutputSize is the number of outputs per sample.
func (s *Sequence) OutputSize() int { return s.Layers[len(s.Layers)-1].Spec.OutputSize }

// Build initializes all GPU resources for all layers
func (s *Sequence) Build() error {
	c, err := GetContext()
	if err != nil {
		return err
	}
	if s.WorkgroupSize == 0 {
		s.WorkgroupSize = chooseWorkgroup(limitsOf(c.Adapter.GetLimits()))
	}
	for i, l := range s.Layers {
		l.WorkgroupSize = s.WorkgroupSize
		label := fmt.Sprintf("L%d", i)
		if err := l.allocateBuffers(c, label); err != nil {
			return err
		}
		if err := l.compile(c, label); err != nil {
			return err
		}
		if err := l.createBindGroup(c, label); err != nil {
			return err
		}
	}
	s.staging, err = newEmptyBuffer(c, "Staging", s.OutputSize()*s.BatchSize,
		wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	s.built = true
	return nil
}

// Forward executes the sequence on one batch. input is sample-major and must
// hold exactly BatchSize*InputSize values.
func (s *Sequence) Forward(input []float32) ([]float32, error) {
	if !s.built {
		return nil, fmt.Errorf("sequence not built")
	}
	if want := s.BatchSize * s.InputSize(); len(input) != want {
		return nil, fmt.Errorf("input has %d values, expected %d", len(input), want)
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}

	c.Queue.WriteBuffer(s.Layers[0].InputBuffer, 0, wgpu.ToBytes(input))

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	for i, l := range s.Layers {
		l.dispatch(enc)
		if i < len(s.Layers)-1 {
			next := s.Layers[i+1]
			enc.CopyBufferToBuffer(l.OutputBuffer, 0, next.InputBuffer, 0, l.OutputBuffer.GetSize())
		} else {
			enc.CopyBufferToBuffer(l.OutputBuffer, 0, s.staging, 0, l.OutputBuffer.GetSize())
		}
	}
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	c.Queue.Submit(cmd)

	currentLogger().Debug("dispatched batch", zap.Int("layers", len(s.Layers)), zap.Int("batch", s.BatchSize))
	return readStaging(c, s.staging, s.OutputSize()*s.BatchSize)
}

// Release frees every GPU resource held by the sequence.
func (s *Sequence) Release() {
	for _, l := range s.Layers {
		l.Release()
	}
	if s.staging != nil {
		s.staging.Destroy()
		s.staging = nil
	}
	s.built = false
}
