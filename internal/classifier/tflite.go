package classifier

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/capuchin-go/internal/cpuspec"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/features"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// TFLiteOptions configures a TensorFlow Lite classifier.
type TFLiteOptions struct {
	ModelPath string
	Threads   int  // 0 selects a count from the CPU topology
	XNNPACK   bool // use the XNNPACK delegate
	Strict    bool // single thread, no delegate
	MelBins   int  // expected mel bins of the input tensor, 0 to accept any
}

// TFLite runs a binary call model through a TensorFlow Lite interpreter.
// Calls are serialized; the interpreter is not safe for concurrent use.
type TFLite struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	delegate    delegates.Delegater
	interpreter *tflite.Interpreter
	shape       []int32 // current input shape, NHWC
	modelPath   string
	threads     int
}

// NewTFLite loads the model and allocates its tensors. Failures are
// model-loading errors and leave no native resources behind.
func NewTFLite(opts TFLiteOptions) (*TFLite, error) {
	start := time.Now()
	log := GetLogger()

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(opts.ModelPath).
			Build()
	}

	model := tflite.NewModelFromFile(opts.ModelPath)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(opts.ModelPath).
			Timing("model-load", time.Since(start)).
			Build()
	}

	m := &TFLite{model: model, modelPath: opts.ModelPath}

	threads := cpuspec.ThreadCount(opts.Threads)
	useXNNPACK := opts.XNNPACK
	if opts.Strict {
		threads = 1
		useXNNPACK = false
	}

	m.options = tflite.NewInterpreterOptions()
	if useXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			m.options.SetNumThread(threads)
		} else {
			m.delegate = delegate
			m.options.AddDelegate(delegate)
			m.options.SetNumThread(1)
		}
	} else {
		m.options.SetNumThread(threads)
	}
	m.threads = threads

	m.options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	m.interpreter = tflite.NewInterpreter(model, m.options)
	if m.interpreter == nil {
		m.Close()
		return nil, errors.Newf("cannot create interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(opts.ModelPath).
			Context("use_xnnpack", useXNNPACK).
			Build()
	}
	if status := m.interpreter.AllocateTensors(); status != tflite.OK {
		m.Close()
		return nil, errors.Newf("tensor allocation failed").
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(opts.ModelPath).
			Build()
	}

	if err := m.checkInputShape(opts.MelBins); err != nil {
		m.Close()
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(opts.ModelPath).
			Build()
	}

	log.Info("classifier model loaded",
		logger.String("model", opts.ModelPath),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", m.delegate != nil),
		logger.Bool("strict", opts.Strict),
		logger.Any("input_shape", m.shape),
		logger.Duration("load_time", time.Since(start)))

	return m, nil
}

// checkInputShape verifies the model takes a single NHWC float tensor with
// three channels and records its shape.
func (m *TFLite) checkInputShape(melBins int) error {
	if n := m.interpreter.GetInputTensorCount(); n != 1 {
		return fmt.Errorf("model has %d input tensors, expected 1", n)
	}
	if m.interpreter.GetOutputTensorCount() < 1 {
		return fmt.Errorf("model has no output tensor")
	}

	input := m.interpreter.GetInputTensor(0)
	if input.Type() != tflite.Float32 {
		return fmt.Errorf("model input type is %v, expected float32", input.Type())
	}
	if input.NumDims() != 4 {
		return fmt.Errorf("model input has %d dimensions, expected 4", input.NumDims())
	}
	if input.Dim(3) != Channels {
		return fmt.Errorf("model input has %d channels, expected %d", input.Dim(3), Channels)
	}
	if melBins > 0 && input.Dim(1) != melBins {
		return fmt.Errorf("model input has %d mel bins, configured %d", input.Dim(1), melBins)
	}

	m.shape = make([]int32, 4)
	for i := range m.shape {
		m.shape[i] = int32(input.Dim(i)) //nolint:gosec // G115: tensor dims fit in int32
	}
	return nil
}

// Classify runs the model on spec. When the frame count differs from the
// current input shape the input tensor is resized and reallocated.
func (m *TFLite) Classify(spec *features.Spectrogram) (float64, error) {
	if m == nil {
		return 0, errors.Newf("classifier is not initialized").
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}
	if err := validateSpectrogram(spec); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return 0, errors.Newf("classifier is closed").
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	if int(m.shape[1]) != spec.Bins {
		return 0, errors.Newf("spectrogram has %d mel bins, model expects %d", spec.Bins, m.shape[1]).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("operation", "check_input").
			Build()
	}

	if err := m.resize(spec.Frames); err != nil {
		return 0, err
	}

	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return 0, m.classificationError("cannot get input tensor", "get_input")
	}
	fillTensor(input.Float32s(), spec)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return 0, m.classificationError(fmt.Sprintf("tensor invoke failed: %v", status), "invoke")
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil || len(output.Float32s()) == 0 {
		return 0, m.classificationError("model produced no output", "read_output")
	}

	return probability(output.Float32s()[0])
}

// resize adapts the input tensor to frames time steps. Caller holds mu.
func (m *TFLite) resize(frames int) error {
	if int(m.shape[2]) == frames {
		return nil
	}

	shape := slices.Clone(m.shape)
	shape[2] = int32(frames) //nolint:gosec // G115: frame counts fit in int32
	if status := m.interpreter.ResizeInputTensor(0, shape); status != tflite.OK {
		return m.classificationError(fmt.Sprintf("cannot resize input tensor to %v", shape), "resize_input")
	}
	if status := m.interpreter.AllocateTensors(); status != tflite.OK {
		return m.classificationError("tensor allocation failed after resize", "resize_input")
	}

	GetLogger().Debug("input tensor resized",
		logger.Int("from_frames", int(m.shape[2])),
		logger.Int("to_frames", frames))
	m.shape = shape
	return nil
}

func (m *TFLite) classificationError(msg, operation string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryClassification).
		ModelContext(m.modelPath).
		Context("operation", operation).
		Build()
}

// InputShape returns the current NHWC input shape.
func (m *TFLite) InputShape() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	shape := make([]int, len(m.shape))
	for i, d := range m.shape {
		shape[i] = int(d)
	}
	return shape
}

// Threads returns the interpreter thread count.
func (m *TFLite) Threads() int {
	return m.threads
}

// Close releases the interpreter and model. It is safe to call more than once.
func (m *TFLite) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.delegate != nil {
		m.delegate.Delete()
		m.delegate = nil
	}
	if m.options != nil {
		m.options.Delete()
		m.options = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
}
