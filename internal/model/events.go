package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventFaceStatus   EventType = "face_status"
	EventFaceDetected EventType = "face_detected"
	EventUserLogin    EventType = "user_login"
	EventDetections   EventType = "detections"
	EventProductAdded EventType = "product_added"
	EventCartUpdated  EventType = "cart_updated"
	EventPong         EventType = "pong"
)

// ActionRegisterPrompt asks the client to collect registration details
const ActionRegisterPrompt = "register_prompt"

// Event is the base structure for all events
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID SessionID
	Payload   any // Type-specific data
}

// FaceStatusPayload reports whether a face was found in the frame
type FaceStatusPayload struct {
	Detected bool `json:"detected"`
}

// FaceDetectedPayload prompts registration for an unknown face
type FaceDetectedPayload struct {
	Action string      `json:"action"`
	BBox   BoundingBox `json:"bbox"`
}

// UserLoginPayload announces that the session is now bound to a user
type UserLoginPayload struct {
	User  UserProfile  `json:"user"`
	IsNew bool         `json:"is_new"`
	BBox  *BoundingBox `json:"bbox,omitempty"`
}

// DetectionsPayload carries the filtered detections for one frame
type DetectionsPayload struct {
	Detections []Detection `json:"detections"`
}

// ProductAddedPayload announces a product forwarded to the cart
type ProductAddedPayload struct {
	Product    Product `json:"product"`
	Confidence float64 `json:"confidence"`
}

// CartUpdatedPayload carries the cart after a mutation
type CartUpdatedPayload struct {
	Cart CartSummary `json:"cart"`
}

// PongPayload answers a client ping
type PongPayload struct {
	Timestamp float64 `json:"timestamp"` // unix seconds
}
