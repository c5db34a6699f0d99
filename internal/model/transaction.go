package model

import "time"

// TransactionID uniquely identifies a committed checkout
type TransactionID string

// Transaction is an immutable record of a committed cart
type Transaction struct {
	ID            TransactionID `json:"id"`
	UserID        UserID        `json:"user_id"`
	UserName      string        `json:"user_name"`
	Items         []CartLine    `json:"items"`
	TotalQuantity int           `json:"total_quantity"`
	TotalAmount   float64       `json:"total_amount"`
	ReceiptCode   string        `json:"receipt_code"`
	CreatedAt     time.Time     `json:"created_at"`
}
