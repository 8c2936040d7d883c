package models

import "time"

// Equipment is a registered asset. Optional fields are pointers so that
// absent values are left out of JSON responses.
type Equipment struct {
	ID           int32     `json:"id"`
	Name         string    `json:"name"`
	AssetCode    string    `json:"asset_code"`
	Description  *string   `json:"description,omitempty"`
	Image        *string   `json:"image,omitempty"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}
