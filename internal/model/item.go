package model

// Item is a single inventory entry. Container and location references are
// nullable and never cascade: removing either only detaches the item.
type Item struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	LocationID     *string  `json:"location_id"`
	ContainerID    *string  `json:"container_id"`
	PhotoURL       string   `json:"photo_url,omitempty"`
	LocalPhotoURI  string   `json:"local_photo_uri,omitempty"`
	Quantity       int      `json:"quantity"`
	MinQuantity    *int     `json:"min_quantity,omitempty"`
	Barcode        string   `json:"barcode,omitempty"`
	PurchaseDate   *int64   `json:"purchase_date,omitempty"`
	PurchasePrice  *float64 `json:"purchase_price,omitempty"`
	PurchaseStore  string   `json:"purchase_store,omitempty"`
	WarrantyMonths *int     `json:"warranty_months,omitempty"`
	Synced         bool     `json:"synced"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// LowStock reports whether the quantity has fallen to or below the minimum.
func (i Item) LowStock() bool {
	return i.MinQuantity != nil && i.Quantity <= *i.MinQuantity
}
