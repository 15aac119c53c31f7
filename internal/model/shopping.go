package model

// ShoppingItem is a shopping list entry. ItemName is free text and acts as
// the natural key when reconciling with the remote list.
type ShoppingItem struct {
	ID          string `json:"id"`
	ItemName    string `json:"item_name"`
	Quantity    int    `json:"quantity"`
	IsPurchased bool   `json:"is_purchased"`
	Synced      bool   `json:"synced"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}
