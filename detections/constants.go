package detections

const (
	DefaultInputSize     = 640
	DefaultConfThreshold = 0.25
	DefaultIoUThreshold  = 0.7
	DefaultMaxDetections = 300

	// Box fields at the head of every anchor column in output0.
	boxChannels = 4
	// Candidates beyond this are dropped before NMS.
	maxNMSCandidates = 30000
	// Grey used by the exporter for letterbox padding.
	letterboxFill = 114
	// YOLOv8 prototype masks are a quarter of the input resolution.
	protoStride = 4
)

var anchorStrides = []int{8, 16, 32}
