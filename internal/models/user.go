package models

// User is an authenticated player. The core treats the ID as an opaque
// submitter id; stats are maintained by the persistence layer.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Provider   string `json:"provider"`
	TotalFlags int    `json:"total_flags"`
	LastFlagAt int64  `json:"last_flag_at,omitempty"`
}
