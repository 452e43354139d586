package detections

import "fmt"

type candidate struct {
	classID int
	score   float32
	// x1, y1, x2, y2 in input (letterboxed) pixels.
	box    [4]float32
	anchor int
}

// decodeCandidates reads the [1, 4+classes+coeffs, anchors] detection tensor
// and keeps every anchor whose best class score reaches threshold.
func decodeCandidates(out []float32, layout modelLayout, threshold float32) ([]candidate, error) {
	n := layout.numAnchors
	expected := layout.outputChannels() * n
	if len(out) != expected {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(out), expected)
	}

	at := func(channel, anchor int) float32 {
		return out[channel*n+anchor]
	}

	candidates := make([]candidate, 0, 64)
	for i := 0; i < n; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < layout.numClasses; c++ {
			if s := at(boxChannels+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx, cy := at(0, i), at(1, i)
		w, h := at(2, i), at(3, i)
		candidates = append(candidates, candidate{
			classID: bestClass,
			score:   bestScore,
			box:     [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			anchor:  i,
		})
	}
	return candidates, nil
}

// maskCoefficients returns the prototype weights stored after the class
// scores for one anchor.
func maskCoefficients(out []float32, layout modelLayout, anchor int) []float32 {
	coeffs := make([]float32, layout.numCoeffs)
	base := boxChannels + layout.numClasses
	for k := range coeffs {
		coeffs[k] = out[(base+k)*layout.numAnchors+anchor]
	}
	return coeffs
}

// assembleDetections maps kept candidates back to source pixels. With
// prototypes every detection gets a mask, possibly empty; without them
// (detect-only export) Mask stays nil.
func assembleDetections(kept []candidate, out, protos []float32, layout modelLayout, lb letterbox) []RawDetection {
	result := make([]RawDetection, 0, len(kept))
	for _, c := range kept {
		det := RawDetection{
			ClassID:    c.classID,
			Confidence: c.score,
			Box:        lb.toSource(c.box),
		}
		if protos != nil {
			det.Mask = buildMask(maskCoefficients(out, layout, c.anchor), protos, layout, c.box)
		}
		result = append(result, det)
	}
	return result
}
