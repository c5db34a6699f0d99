package model

// RawDetection is a single object detector output before filtering
type RawDetection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	BBox       BoundingBox
}

// Detection is a filtered detection with its catalog resolution
type Detection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	Product    *Product    `json:"product,omitempty"` // nil when the class has no catalog mapping
}

// Face is a detected face with its embedding
type Face struct {
	Embedding []float64
	BBox      BoundingBox
}

// FaceMatch is the closest known identity for an embedding.
// Found is false when no identities are known.
type FaceMatch struct {
	UserID   UserID
	Found    bool
	Distance float64
}
