package vision

import "testing"

func TestDecodeStride(t *testing.T) {
	// 2x2 cells, two anchors each: 8 anchors.
	scores := make([]float32, 8)
	boxes := make([]float32, 8*4)

	// Anchor 1 of cell (x=1, y=0): centre (8, 0) at stride 8.
	scores[3] = 0.9
	copy(boxes[3*4:], []float32{0.5, 0, 1, 2})
	// Below threshold.
	scores[6] = 0.2

	dets := decodeStride(scores, boxes, 8, 2, 0.5, 2, 2, 100, 100)
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	want := [4]float32{(8 - 4) * 2, 0, (8 + 8) * 2, 16 * 2}
	if dets[0].BBox != want {
		t.Errorf("BBox = %v, want %v", dets[0].BBox, want)
	}
	if dets[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v", dets[0].Confidence)
	}
}

func TestDecodeStride_Clamps(t *testing.T) {
	scores := []float32{1, 0}
	boxes := []float32{5, 5, 50, 50, 0, 0, 0, 0}
	dets := decodeStride(scores, boxes, 8, 1, 0.5, 1, 1, 64, 48)
	if len(dets) != 1 {
		t.Fatalf("got %d detections", len(dets))
	}
	if want := [4]float32{0, 0, 64, 48}; dets[0].BBox != want {
		t.Errorf("BBox = %v, want %v", dets[0].BBox, want)
	}
}

func TestNMS(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.6},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}
	kept := nms(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("kept %d, want 2", len(kept))
	}
	if kept[0].Confidence != 0.9 || kept[1].Confidence != 0.7 {
		t.Errorf("kept = %+v", kept)
	}
	if nms(nil, 0.4) != nil {
		t.Error("nms(nil) should be nil")
	}
}

func TestIoU(t *testing.T) {
	if got := iou([4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}); got != 1 {
		t.Errorf("iou(same) = %v", got)
	}
	if got := iou([4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}); got != 0 {
		t.Errorf("iou(disjoint) = %v", got)
	}
	if got := iou([4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}); got < 0.33 || got > 0.34 {
		t.Errorf("iou(half overlap) = %v, want 1/3", got)
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2Normalize(v)
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("l2Normalize = %v", v)
	}
	zero := []float32{0, 0}
	l2Normalize(zero)
	if zero[0] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
