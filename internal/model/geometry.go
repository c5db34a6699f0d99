package model

import (
	"encoding/json"
	"fmt"
	"image"
)

// BoundingBox is a rectangle in frame pixel coordinates.
// It is encoded on the wire as [left, top, right, bottom].
type BoundingBox struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Empty reports whether the box has no area
func (b BoundingBox) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.Left, b.Top, b.Right, b.Bottom})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bounding box must have 4 coordinates, got %d", len(v))
	}
	b.Left, b.Top, b.Right, b.Bottom = v[0], v[1], v[2], v[3]
	return nil
}
