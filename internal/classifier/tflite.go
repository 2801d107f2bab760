package classifier

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// TFLiteClassifier runs a quantized TensorFlow Lite keyword model.
type TFLiteClassifier struct {
	mu          sync.Mutex
	path        string
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	contract    Contract
}

// NewTFLiteClassifier loads the model at path and allocates its tensors.
func NewTFLiteClassifier(path string, threads int) (*TFLiteClassifier, error) {
	start := time.Now()

	modelData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(path).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(path).
			Context("model_size_kb", len(modelData)/1024).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(path).
			Build()
	}

	c := &TFLiteClassifier{
		path:        path,
		model:       model,
		options:     options,
		interpreter: interpreter,
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		_ = c.Close()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(path).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil {
		_ = c.Close()
		return nil, errors.New(fmt.Errorf("model has no input or output tensor")).
			Component("classifier").
			Category(errors.CategoryClassifierContract).
			ModelContext(path).
			Build()
	}

	c.contract = Contract{
		InputDims:  tensorDims(input),
		InputType:  elementType(input.Type()),
		OutputLen:  output.Dim(output.NumDims() - 1),
		OutputType: elementType(output.Type()),
	}

	GetLogger().Info("keyword model loaded",
		logger.String("path", path),
		logger.String("contract", c.contract.String()),
		logger.Int("threads", threads),
		logger.Duration("load_time", time.Since(start)))

	return c, nil
}

// Contract returns the tensor layout read from the model.
func (c *TFLiteClassifier) Contract() Contract {
	return c.contract
}

// Classify copies features into the input tensor, runs the model and returns
// the scores as uint8. int8 outputs are shifted by +128.
func (c *TFLiteClassifier) Classify(features []int8) ([]uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, errors.Newf("classifier is closed").
			Component("classifier").
			Category(errors.CategoryState).
			Build()
	}

	input := c.interpreter.GetInputTensor(0)
	inputData := input.Int8s()
	if len(features) != len(inputData) {
		return nil, errors.New(fmt.Errorf("%w: %d features for input of %d", ErrContractViolation, len(features), len(inputData))).
			Component("classifier").
			Category(errors.CategoryClassifierContract).
			Build()
	}
	copy(inputData, features)

	start := time.Now()
	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New(fmt.Errorf("tensor invoke failed: %v", status)).
			Component("classifier").
			Category(errors.CategoryInference).
			Timing("invoke", time.Since(start)).
			Build()
	}

	output := c.interpreter.GetOutputTensor(0)
	scores := make([]uint8, c.contract.OutputLen)
	switch c.contract.OutputType {
	case ElementUInt8:
		copy(scores, output.UInt8s())
	case ElementInt8:
		for i, v := range output.Int8s()[:len(scores)] {
			scores[i] = uint8(int16(v) + 128)
		}
	default:
		return nil, errors.New(fmt.Errorf("%w: output type %s", ErrContractViolation, c.contract.OutputType)).
			Component("classifier").
			Category(errors.CategoryClassifierContract).
			Build()
	}
	return scores, nil
}

// Close releases the interpreter and the model.
func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}

func tensorDims(t *tflite.Tensor) []int {
	dims := make([]int, t.NumDims())
	for i := range dims {
		dims[i] = t.Dim(i)
	}
	return dims
}

func elementType(t tflite.TensorType) ElementType {
	switch t {
	case tflite.Int8:
		return ElementInt8
	case tflite.UInt8:
		return ElementUInt8
	case tflite.Float32:
		return ElementFloat32
	default:
		return ElementOther
	}
}

var _ Classifier = (*TFLiteClassifier)(nil)
