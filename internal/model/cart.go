package model

import "encoding/json"

// CartLine is one product's aggregated quantity within a session cart
type CartLine struct {
	ProductID ProductID
	Name      string
	UnitPrice float64
	Quantity  int
}

// Subtotal is always derived from quantity and unit price
func (l CartLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

type cartLineJSON struct {
	ProductID ProductID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Subtotal  float64   `json:"subtotal"`
}

func (l CartLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartLineJSON{
		ProductID: l.ProductID,
		Name:      l.Name,
		UnitPrice: l.UnitPrice,
		Quantity:  l.Quantity,
		Subtotal:  l.Subtotal(),
	})
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var v cartLineJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = CartLine{ProductID: v.ProductID, Name: v.Name, UnitPrice: v.UnitPrice, Quantity: v.Quantity}
	return nil
}

// CartSummary is a point-in-time view of a cart
type CartSummary struct {
	Lines         []CartLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalAmount   float64    `json:"total_amount"`
}

// SummarizeLines computes totals over a copy of the given lines
func SummarizeLines(lines []CartLine) CartSummary {
	s := CartSummary{Lines: make([]CartLine, len(lines))}
	copy(s.Lines, lines)
	for _, l := range lines {
		s.TotalQuantity += l.Quantity
		s.TotalAmount += l.Subtotal()
	}
	return s
}
