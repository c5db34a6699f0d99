package response

import (
	"encoding/base64"

	"github.com/mcoot/smartkiosk/internal/model"
)

// Health is the response for the health endpoint
type Health struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	CatalogSize    int    `json:"catalog_size"`
	Storage        string `json:"storage"`
}

// Register is the response for a successful registration
type Register struct {
	User model.UserProfile `json:"user"`
}

// UserInfo is a shopper's profile with the face captured at registration
type UserInfo struct {
	User UserDetails `json:"user"`
}

// UserDetails extends the public profile with an avatar data URL
type UserDetails struct {
	model.UserProfile
	Avatar string `json:"avatar,omitempty"`
}

// UserInfoFromModel converts a stored user
func UserInfoFromModel(u *model.User) UserInfo {
	details := UserDetails{UserProfile: u.Profile()}
	if len(u.FaceImage) > 0 {
		details.Avatar = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(u.FaceImage)
	}
	return UserInfo{User: details}
}

// Checkout is the response for a committed checkout
type Checkout struct {
	TransactionID string  `json:"transaction_id"`
	ReceiptCode   string  `json:"receipt_code"`
	TotalQuantity int     `json:"total_quantity"`
	TotalAmount   float64 `json:"total_amount"`
}

// CheckoutFromModel converts a committed transaction
func CheckoutFromModel(tx *model.Transaction) Checkout {
	return Checkout{
		TransactionID: string(tx.ID),
		ReceiptCode:   tx.ReceiptCode,
		TotalQuantity: tx.TotalQuantity,
		TotalAmount:   tx.TotalAmount,
	}
}

// Cart is the response for a session's cart
type Cart struct {
	SessionID string            `json:"session_id"`
	Cart      model.CartSummary `json:"cart"`
}

// Products is the response for the catalog listing
type Products struct {
	Products []model.Product `json:"products"`
	Count    int             `json:"count"`
}

// Transactions is a user's purchase history, newest first
type Transactions struct {
	UserID            string               `json:"user_id"`
	Transactions      []*model.Transaction `json:"transactions"`
	TotalTransactions int                  `json:"total_transactions"`
	TotalSpent        float64              `json:"total_spent"`
}

// TransactionsFromModel summarizes a user's history
func TransactionsFromModel(userID model.UserID, txs []*model.Transaction) Transactions {
	resp := Transactions{
		UserID:            string(userID),
		Transactions:      txs,
		TotalTransactions: len(txs),
	}
	if resp.Transactions == nil {
		resp.Transactions = []*model.Transaction{}
	}
	for _, tx := range txs {
		resp.TotalSpent += tx.TotalAmount
	}
	return resp
}

// Transaction is a single receipt
type Transaction struct {
	Transaction *model.Transaction `json:"transaction"`
}

// CatalogReload is the response for an admin catalog reload
type CatalogReload struct {
	Products int `json:"products"`
}
