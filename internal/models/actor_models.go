package models

// Actor is the authenticated caller. BakeryID scopes every tenant-owned read
// and write; the identity provider is the only source of these values.
type Actor struct {
	UserID          string `json:"user_id"`
	BakeryID        string `json:"bakery_id"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	Role            string `json:"role,omitempty"`
}
