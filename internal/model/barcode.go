package model

import "encoding/json"

// BarcodeLookup is a cached product lookup keyed by barcode.
type BarcodeLookup struct {
	Barcode  string          `json:"barcode"`
	Payload  json.RawMessage `json:"payload"`
	CachedAt int64           `json:"cached_at"`
}
