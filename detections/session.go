package detections

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
	// Nil for detect-only exports.
	Protos *ort.Tensor[float32]
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
	if m.Protos != nil {
		m.Protos.Destroy()
	}
}

// InitRuntime loads the ONNX Runtime shared library. The returned func tears
// the environment down again.
func InitRuntime(libPath string) (func() error, error) {
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("error initializing onnxruntime from %s: %w", libPath, err)
	}
	return ort.DestroyEnvironment, nil
}

// inspectModel reads tensor names and shapes from the model file. Dynamic
// dimensions are resolved from inputSize.
func inspectModel(modelPath string, inputSize int) (modelLayout, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return modelLayout{}, fmt.Errorf("error reading model io info: %w", err)
	}
	if len(inputs) != 1 {
		return modelLayout{}, fmt.Errorf("expected 1 model input, got %d", len(inputs))
	}

	layout := modelLayout{
		inputName: inputs[0].Name,
		inputSize: inputSize,
	}
	if dims := inputs[0].Dimensions; len(dims) == 4 && dims[2] > 0 {
		layout.inputSize = int(dims[2])
	}

	var outputChannels int64
	for _, out := range outputs {
		dims := out.Dimensions
		switch len(dims) {
		case 3:
			layout.outputName = out.Name
			outputChannels = dims[1]
			if dims[2] > 0 {
				layout.numAnchors = int(dims[2])
			}
		case 4:
			layout.protoName = out.Name
			layout.numCoeffs = int(dims[1])
			layout.protoH = int(dims[2])
			layout.protoW = int(dims[3])
		}
	}

	if layout.outputName == "" {
		return modelLayout{}, fmt.Errorf("model has no detection output")
	}
	if layout.numAnchors == 0 {
		layout.numAnchors = anchorCount(layout.inputSize)
	}
	if layout.protoName != "" && layout.protoH <= 0 {
		layout.protoH = layout.inputSize / protoStride
		layout.protoW = layout.inputSize / protoStride
	}

	layout.numClasses = int(outputChannels) - boxChannels - layout.numCoeffs
	if layout.numClasses <= 0 {
		return modelLayout{}, fmt.Errorf("unexpected detection output channels: %d", outputChannels)
	}
	return layout, nil
}

func anchorCount(inputSize int) int {
	n := 0
	for _, s := range anchorStrides {
		side := inputSize / s
		n += side * side
	}
	return n
}

func newSessionOptions(threads int) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}
	return options, nil
}

func initSession(modelPath string, layout modelLayout, threads int) (*ModelSession, error) {
	options, err := newSessionOptions(threads)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	size := int64(layout.inputSize)
	m := &ModelSession{}

	m.Input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	m.Output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(layout.outputChannels()), int64(layout.numAnchors)))
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	outputNames := []string{layout.outputName}
	outputs := []ort.Value{m.Output}
	if layout.hasMasks() {
		m.Protos, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(layout.numCoeffs), int64(layout.protoH), int64(layout.protoW)))
		if err != nil {
			m.Destroy()
			return nil, fmt.Errorf("error creating proto tensor: %w", err)
		}
		outputNames = append(outputNames, layout.protoName)
		outputs = append(outputs, m.Protos)
	}

	m.Session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{layout.inputName},
		outputNames,
		[]ort.Value{m.Input},
		outputs,
		options,
	)
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return m, nil
}
