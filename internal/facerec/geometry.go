package facerec

import (
	"image"
	"sort"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ComputeIoU calculates Intersection over Union between two rectangles.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// DedupeDetections collapses detections whose boxes overlap by at least
// constants.DetectionOverlapIoU, keeping the one with the higher score.
// The survivors keep their original relative order.
func DedupeDetections(dets []Detection) []Detection {
	if len(dets) < 2 {
		return dets
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dets[order[i]].Score > dets[order[j]].Score
	})

	keep := make([]bool, len(dets))
	for _, i := range order {
		overlaps := false
		for j := range dets {
			if keep[j] && ComputeIoU(dets[i].BBox, dets[j].BBox) >= constants.DetectionOverlapIoU {
				overlaps = true
				break
			}
		}
		if !overlaps {
			keep[i] = true
		}
	}

	out := make([]Detection, 0, len(dets))
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}
