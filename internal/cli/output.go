package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealth(v)
	case ProductList:
		o.printProducts(v)
	case CartResult:
		o.printCart(v)
	case RegisterResult:
		o.printUser(v.User)
	case CheckoutResult:
		o.printCheckout(v)
	case TransactionHistory:
		o.printHistory(v)
	case ReceiptResult:
		o.printTransaction(v.Transaction)
	case UserInfoResult:
		o.printUser(v.User.User)
		if v.User.LastVisit != nil {
			fmt.Fprintf(o.w, "Last visit: %s\n", v.User.LastVisit.Local().Format(time.DateTime))
		}
	case ReloadResult:
		fmt.Fprintf(o.w, "Catalog reloaded: %d products\n", v.Products)
	case StreamEvent:
		o.printEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	CatalogSize    int    `json:"catalog_size"`
	Storage        string `json:"storage"`
}

// Product response type (matches API)
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ClassID   int     `json:"yolo_class_id"`
	ClassName string  `json:"yolo_class_name"`
}

// ProductList response type
type ProductList struct {
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}

// CartLine response type
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// Cart response type
type Cart struct {
	Items         []CartLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalAmount   float64    `json:"total_amount"`
}

// CartResult response type
type CartResult struct {
	SessionID string `json:"session_id"`
	Cart      Cart   `json:"cart"`
}

// User response type
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Birthday  string     `json:"birthday,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastVisit *time.Time `json:"last_visit,omitempty"`
}

// RegisterResult response type
type RegisterResult struct {
	User User `json:"user"`
}

// UserInfo response type
type UserInfo struct {
	User
	Avatar string `json:"avatar,omitempty"`
}

// UserInfoResult response type
type UserInfoResult struct {
	User UserInfo `json:"user"`
}

// CheckoutResult response type
type CheckoutResult struct {
	TransactionID string  `json:"transaction_id"`
	ReceiptCode   string  `json:"receipt_code"`
	TotalQuantity int     `json:"total_quantity"`
	TotalAmount   float64 `json:"total_amount"`
}

// Transaction response type
type Transaction struct {
	ID            string     `json:"id"`
	UserName      string     `json:"user_name"`
	Items         []CartLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalAmount   float64    `json:"total_amount"`
	ReceiptCode   string     `json:"receipt_code"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TransactionHistory response type
type TransactionHistory struct {
	UserID            string        `json:"user_id"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	TotalSpent        float64       `json:"total_spent"`
}

// ReceiptResult response type
type ReceiptResult struct {
	Transaction Transaction `json:"transaction"`
}

// ReloadResult response type
type ReloadResult struct {
	Products int `json:"products"`
}

// StreamEvent is one server event received over the kiosk WebSocket
type StreamEvent struct {
	Time time.Time       `json:"time"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (o *Output) printHealth(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	fmt.Fprintf(o.w, "Active sessions: %d\n", h.ActiveSessions)
	fmt.Fprintf(o.w, "Catalog size: %d\n", h.CatalogSize)
}

func (o *Output) printProducts(l ProductList) {
	fmt.Fprintf(o.w, "Products (%d):\n", l.Count)
	for _, p := range l.Products {
		fmt.Fprintf(o.w, "  [%d] %s %s - %.2f (%s)\n", p.ClassID, p.ID, p.Name, p.Price, p.ClassName)
	}
}

func (o *Output) printCart(c CartResult) {
	fmt.Fprintf(o.w, "Session: %s\n", c.SessionID)
	o.printLines(c.Cart.Items)
	fmt.Fprintf(o.w, "Total: %d items, %.2f\n", c.Cart.TotalQuantity, c.Cart.TotalAmount)
}

func (o *Output) printLines(lines []CartLine) {
	if len(lines) == 0 {
		fmt.Fprintln(o.w, "  (empty)")
		return
	}
	for i, l := range lines {
		fmt.Fprintf(o.w, "  %d. %s x%d @ %.2f = %.2f\n", i, l.Name, l.Quantity, l.Price, l.Subtotal)
	}
}

func (o *Output) printUser(u User) {
	fmt.Fprintf(o.w, "User: %s (%s)\n", u.Name, u.ID)
	fmt.Fprintf(o.w, "Phone: %s\n", u.Phone)
	if u.Birthday != "" {
		fmt.Fprintf(o.w, "Birthday: %s\n", u.Birthday)
	}
}

func (o *Output) printCheckout(c CheckoutResult) {
	fmt.Fprintf(o.w, "Transaction: %s\n", c.TransactionID)
	fmt.Fprintf(o.w, "Receipt code: %s\n", c.ReceiptCode)
	fmt.Fprintf(o.w, "Total: %d items, %.2f\n", c.TotalQuantity, c.TotalAmount)
}

func (o *Output) printHistory(h TransactionHistory) {
	fmt.Fprintf(o.w, "User: %s\n", h.UserID)
	fmt.Fprintf(o.w, "Transactions: %d, total spent %.2f\n", h.TotalTransactions, h.TotalSpent)
	for _, tx := range h.Transactions {
		fmt.Fprintln(o.w)
		o.printTransaction(tx)
	}
}

func (o *Output) printTransaction(tx Transaction) {
	fmt.Fprintf(o.w, "%s  %s  receipt %s\n", tx.CreatedAt.Local().Format(time.DateTime), tx.ID, tx.ReceiptCode)
	o.printLines(tx.Items)
	fmt.Fprintf(o.w, "  Total: %d items, %.2f\n", tx.TotalQuantity, tx.TotalAmount)
}

func (o *Output) printEvent(e StreamEvent) {
	timestamp := e.Time.Format("15:04:05.000")
	data := strings.TrimSpace(string(e.Data))
	fmt.Fprintf(o.w, "[%s] %s: %s\n", timestamp, e.Type, data)
}
