package model

// UserPublic is the projection of a user the chat layer attaches to messages
// and memberships. The full profile lives in the user directory.
type UserPublic struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}
