package models

import "time"

// Inquiry is a purchase-information request submitted from the site.
type Inquiry struct {
	CaseID    int       `json:"case_id"`
	AssetID   string    `json:"asset_id"`
	AssetName string    `json:"asset_name"`
	FullName  string    `json:"full_name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
