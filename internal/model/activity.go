package model

import "time"

// Activity is the external entity chat eligibility derives from. The chat core
// reads creator/participants and flips HasRoom; everything else about
// activities belongs to the activity service.
type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatorID    string    `json:"creator_id"`
	Participants []string  `json:"participants"`
	HasRoom      bool      `json:"has_room"`
	CreatedAt    time.Time `json:"created_at"`
}
