package detections

import (
	"image"
	"time"
)

// RawDetection is one object as the detector emits it, before the service
// rounds it into the public schema.
type RawDetection struct {
	ClassID    int
	Confidence float32
	// x1, y1, x2, y2 in source image pixels.
	Box  [4]float32
	Mask *Mask
}

// Mask is a binary segmentation of one object in prototype space. Area may be
// zero. A nil Mask means the model has no segmentation output.
type Mask struct {
	Bounds image.Rectangle
	Bits   []bool
	Area   int
}

type Config struct {
	ModelPath      string
	LabelsPath     string
	InputSize      int
	IoUThreshold   float32
	MaxDetections  int
	PoolSize       int
	AcquireTimeout time.Duration
	IntraOpThreads int
}

// modelLayout describes the tensors of an exported YOLOv8 model.
type modelLayout struct {
	inputName  string
	outputName string
	protoName  string

	inputSize  int
	numAnchors int
	numClasses int
	numCoeffs  int
	protoH     int
	protoW     int
}

func (l modelLayout) outputChannels() int {
	return boxChannels + l.numClasses + l.numCoeffs
}

func (l modelLayout) hasMasks() bool {
	return l.protoName != "" && l.numCoeffs > 0
}
