package models

// ChannelInfo is a metadata snapshot of a channel.
// Each fetch produces a complete replacement, never a partial update.
type ChannelInfo struct {
	Username    string  `json:"username"`
	Title       string  `json:"title"`
	ImageURL    string  `json:"image_url"`
	Description *string `json:"description"`
	Subscribers *int64  `json:"subscribers"`
	Photos      *int64  `json:"photos"`
	Videos      *int64  `json:"videos"`
	Links       *int64  `json:"links"`
}
