package detections

import "sort"

// nonMaxSuppression keeps the highest scoring box of every overlapping group
// of the same class, in descending score order.
func nonMaxSuppression(candidates []candidate, iouThreshold float32, maxDetections int) []candidate {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxNMSCandidates {
		candidates = candidates[:maxNMSCandidates]
	}

	kept := make([]candidate, 0, min(len(candidates), maxDetections))
	suppressed := make([]bool, len(candidates))

	for i := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, candidates[i])
		if len(kept) == maxDetections {
			break
		}
		for j := i + 1; j < len(candidates); j++ {
			if suppressed[j] || candidates[j].classID != candidates[i].classID {
				continue
			}
			if iou(candidates[i].box, candidates[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[2], b[2]), min(a[3], b[3])

	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(box [4]float32) float32 {
	return max(0, box[2]-box[0]) * max(0, box[3]-box[1])
}
