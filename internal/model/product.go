package model

import "time"

// ProductID uniquely identifies a catalog product
type ProductID string

// Product is a sellable item recognizable by the object detector
type Product struct {
	ID        ProductID `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ClassID   int       `json:"yolo_class_id"`
	ClassName string    `json:"yolo_class_name"`
	CreatedAt time.Time `json:"created_at"`
}
