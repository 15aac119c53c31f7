package model

type Container struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	LocationID    *string `json:"location_id"`
	PhotoURL      string  `json:"photo_url,omitempty"`
	LocalPhotoURI string  `json:"local_photo_uri,omitempty"`
	Synced        bool    `json:"synced"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
}
