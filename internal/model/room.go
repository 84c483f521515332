package model

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Room is a chat channel scoped to exactly one activity.
type Room struct {
	ID          string     `json:"id"`
	ActivityID  string     `json:"activity_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	AvatarURL   string     `json:"avatar_url"`
	Visibility  Visibility `json:"visibility"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Membership links a user to a room. A user appears at most once per room.
type Membership struct {
	RoomID   string      `json:"room_id"`
	UserID   string      `json:"user_id"`
	Role     Role        `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
	User     *UserPublic `json:"user,omitempty"`
}

type RoomWithMembers struct {
	Room    Room         `json:"room"`
	Members []Membership `json:"members"`
}
