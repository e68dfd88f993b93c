package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"

	tflite "github.com/tphakala/go-tflite"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// TFLiteModel runs an SSD-style object detector. Its outputs are, in order: boxes
// [1,N,4] (ymin, xmin, ymax, xmax, normalized), classes [1,N], scores [1,N] and count [1].
//
// A TFLiteModel is not safe for concurrent use; Service serializes calls.
type TFLiteModel struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      []string
	width       int
	height      int
	quantized   bool
}

// TFLiteConfig selects the model file, labels and interpreter threads
type TFLiteConfig struct {
	ModelPath  string
	LabelsPath string
	Threads    int
}

// TFLiteLoader returns a Loader that builds a TFLiteModel from cfg
func TFLiteLoader(cfg TFLiteConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		return LoadTFLite(cfg)
	}
}

// LoadTFLite loads the detector and allocates its tensors
func LoadTFLite(cfg TFLiteConfig) (*TFLiteModel, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("no detection model configured")
	}

	labels := DefaultLabels()
	if cfg.LabelsPath != "" {
		var err error
		if labels, err = LoadLabels(cfg.LabelsPath); err != nil {
			return nil, err
		}
	}

	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model %s", cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(max(1, cfg.Threads))
	options.SetErrorReporter(func(msg string, _ any) {
		zap.S().Errorw("tflite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New("unexpected detector input shape")
	}

	m := &TFLiteModel{
		model:       model,
		options:     options,
		interpreter: interpreter,
		labels:      labels,
		height:      input.Dim(1),
		width:       input.Dim(2),
		quantized:   input.Type() == tflite.UInt8,
	}
	zap.S().Infow("detection model loaded",
		"model", cfg.ModelPath,
		"input", fmt.Sprintf("%dx%d", m.width, m.height),
		"quantized", m.quantized,
		"labels", len(labels),
	)
	return m, nil
}

// Detect runs the detector on img. Detections carry the raw score; thresholding and
// ranking are left to the caller.
func (m *TFLiteModel) Detect(img image.Image) ([]models.Detection, error) {
	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.New("cannot get input tensor")
	}

	resized := resizeRGBA(img, m.width, m.height)
	if m.quantized {
		copy(input.UInt8s(), pixelsUint8(resized))
	} else {
		copy(input.Float32s(), pixelsFloat32(resized))
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	if m.interpreter.GetOutputTensorCount() < 4 {
		return nil, errors.New("unexpected detector outputs")
	}
	boxes := m.interpreter.GetOutputTensor(0).Float32s()
	classes := m.interpreter.GetOutputTensor(1).Float32s()
	scores := m.interpreter.GetOutputTensor(2).Float32s()
	countOut := m.interpreter.GetOutputTensor(3).Float32s()
	if len(countOut) == 0 {
		return nil, errors.New("detector returned no count")
	}

	return decodeDetections(m.labels, boxes, classes, scores, int(countOut[0])), nil
}

// Close releases the interpreter and model
func (m *TFLiteModel) Close() {
	m.interpreter.Delete()
	m.options.Delete()
	m.model.Delete()
}

// decodeDetections turns SSD output tensors into detections, skipping unknown classes
func decodeDetections(labels []string, boxes, classes, scores []float32, count int) []models.Detection {
	count = min(count, len(classes), len(scores), len(boxes)/4)
	out := make([]models.Detection, 0, count)
	for i := 0; i < count; i++ {
		label, ok := labelFor(labels, int(classes[i]))
		if !ok {
			continue
		}
		ymin, xmin, ymax, xmax := clamp01(boxes[i*4]), clamp01(boxes[i*4+1]), clamp01(boxes[i*4+2]), clamp01(boxes[i*4+3])
		out = append(out, models.Detection{
			Label:      label,
			Confidence: scores[i],
			Box: models.BoundingBox{
				X:      xmin,
				Y:      ymin,
				Width:  max(0, xmax-xmin),
				Height: max(0, ymax-ymin),
			},
		})
	}
	return out
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
