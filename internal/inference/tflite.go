package inference

import (
	"context"
	"fmt"
	"sync"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/edgetpu"
)

// Options configure the TFLite interpreter.
type Options struct {
	Threads int
	EdgeTPU bool
}

// TFLite runs a single-input single-output segmentation model.
// The interpreter is not reentrant, so Predict calls are serialized.
type TFLite struct {
	mu     sync.Mutex
	model  *tflite.Model
	interp *tflite.Interpreter
	logger logger.Logger
}

// NewTFLite loads modelPath and allocates its tensors. Any failure wraps ErrModelLoad.
func NewTFLite(modelPath string, opts Options, log logger.Logger) (*TFLite, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load %s", models.ErrModelLoad, modelPath)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()

	threads := opts.Threads
	if threads <= 0 {
		threads = 1
	}
	options.SetNumThread(threads)

	if opts.EdgeTPU {
		devices, err := edgetpu.DeviceList()
		switch {
		case err != nil:
			log.Warning("TFLite", "could not list Edge TPU devices", map[string]interface{}{"error": err.Error()})
		case len(devices) == 0:
			log.Warning("TFLite", "no Edge TPU devices found, running on CPU", nil)
		default:
			options.AddDelegate(edgetpu.New(devices[0]))
			log.Info("TFLite", "Edge TPU delegate attached", nil)
		}
	}

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter", models.ErrModelLoad)
	}

	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: allocate tensors failed", models.ErrModelLoad)
	}

	input := interp.GetInputTensor(0)
	log.Info("TFLite", "model ready", map[string]interface{}{
		"path":        modelPath,
		"threads":     threads,
		"input_shape": tensorShape(input),
	})

	return &TFLite{model: model, interp: interp, logger: log}, nil
}

func (e *TFLite) Predict(ctx context.Context, in models.ModelInput) (models.ProbabilityMap, error) {
	if err := ctx.Err(); err != nil {
		return models.ProbabilityMap{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	input := e.interp.GetInputTensor(0)
	if err := checkInputShape(tensorShape(input), in.Shape); err != nil {
		return models.ProbabilityMap{}, err
	}
	if err := fillInput(input, in.Data); err != nil {
		return models.ProbabilityMap{}, err
	}

	if status := e.interp.Invoke(); status != tflite.OK {
		return models.ProbabilityMap{}, fmt.Errorf("invoke failed: %v", status)
	}

	output := e.interp.GetOutputTensor(0)
	shape := tensorShape(output)
	if len(shape) != 4 || shape[0] != 1 || shape[3] != 1 {
		return models.ProbabilityMap{}, fmt.Errorf("unexpected output shape %v", shape)
	}

	values, err := extractOutput(output)
	if err != nil {
		return models.ProbabilityMap{}, err
	}
	if len(values) != shape[1]*shape[2] {
		return models.ProbabilityMap{}, fmt.Errorf("output holds %d values, want %d", len(values), shape[1]*shape[2])
	}

	return models.ProbabilityMap{Width: shape[2], Height: shape[1], Values: values}, nil
}

func (e *TFLite) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interp != nil {
		e.interp.Delete()
		e.interp = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

func tensorShape(tensor *tflite.Tensor) []int {
	shape := []int{}
	for idx := 0; idx < tensor.NumDims(); idx++ {
		shape = append(shape, tensor.Dim(idx))
	}
	return shape
}

func checkInputShape(tensor []int, want [4]int) error {
	if len(tensor) != 4 {
		return fmt.Errorf("model input has %d dims, want 4", len(tensor))
	}
	for i := range want {
		if tensor[i] != want[i] {
			return fmt.Errorf("model input shape %v does not match %v", tensor, want)
		}
	}
	return nil
}

// fillInput copies normalized pixels into the input tensor, quantizing for uint8 models.
func fillInput(input *tflite.Tensor, data []float32) error {
	switch input.Type() {
	case tflite.Float32:
		if err := input.SetFloat32s(data); err != nil {
			return fmt.Errorf("set float32 input failed: %v", err)
		}
	case tflite.UInt8:
		quantized := make([]uint8, len(data))
		for i, v := range data {
			quantized[i] = quantize(v)
		}
		if err := input.SetUint8s(quantized); err != nil {
			return fmt.Errorf("set uint8 input failed: %v", err)
		}
	default:
		return fmt.Errorf("unsupported input tensor type %v", input.Type())
	}
	return nil
}

func extractOutput(output *tflite.Tensor) ([]float32, error) {
	switch output.Type() {
	case tflite.Float32:
		f := output.Float32s()
		values := make([]float32, len(f))
		copy(values, f)
		return values, nil
	case tflite.UInt8:
		f := output.UInt8s()
		values := make([]float32, len(f))
		for i, v := range f {
			values[i] = float32(v) / 255
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported output tensor type %v", output.Type())
	}
}

func quantize(v float32) uint8 {
	scaled := v*255 + 0.5
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}
