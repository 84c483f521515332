package chat

import "github.com/travelbuddy/internal/model"

// CanJoin reports whether userID may join the activity's room: the activity
// creator or any participant. Evaluated before any mutation.
func CanJoin(activity *model.Activity, userID string) bool {
	if userID == "" || activity == nil {
		return false
	}
	if activity.CreatorID == userID {
		return true
	}
	for _, p := range activity.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// CanReadOrWrite reports whether userID may read or post in a room. Governed
// purely by room membership; activity participation is not consulted here.
func CanReadOrWrite(memberIDs []string, userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range memberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
