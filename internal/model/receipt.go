package model

// Receipt belongs to exactly one item and is removed with it.
type Receipt struct {
	ID            string `json:"id"`
	ItemID        string `json:"item_id"`
	PhotoURL      string `json:"photo_url,omitempty"`
	LocalPhotoURI string `json:"local_photo_uri,omitempty"`
	Synced        bool   `json:"synced"`
	CreatedAt     int64  `json:"created_at"`
}
