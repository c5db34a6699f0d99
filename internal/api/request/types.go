package request

// RegisterRequest is the request body for registering the shopper in front of a kiosk
type RegisterRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Birthday  string `json:"birthday,omitempty"` // YYYY-MM-DD
}

// CheckoutRequest is the request body for checking out a session's cart
type CheckoutRequest struct {
	SessionID string `json:"session_id"`
}
