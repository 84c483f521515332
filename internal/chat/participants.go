package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/travelbuddy/internal/model"
)

// ParticipantSpec is one entry of a room's initial member list.
type ParticipantSpec struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role,omitempty"`
}

// ParseParticipants normalizes the participant list at the service boundary.
// Clients historically sent either a JSON array of user ids, an array of
// {user_id, role} objects, or the whole array JSON-encoded again as a string.
// All shapes collapse into one typed list; anything else fails fast.
func ParseParticipants(raw string) ([]ParticipantSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: participants are required", ErrInvalidInput)
	}

	// Double-encoded: a JSON string whose content is the actual array.
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, fmt.Errorf("%w: malformed participants", ErrInvalidInput)
		}
		raw = inner
	}

	var specs []ParticipantSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("%w: malformed participants", ErrInvalidInput)
		}
		specs = make([]ParticipantSpec, 0, len(ids))
		for _, id := range ids {
			specs = append(specs, ParticipantSpec{UserID: id})
		}
	}

	out := make([]ParticipantSpec, 0, len(specs))
	for _, s := range specs {
		s.UserID = strings.TrimSpace(s.UserID)
		if s.UserID == "" {
			return nil, fmt.Errorf("%w: participant without user id", ErrInvalidInput)
		}
		if s.Role == "" {
			s.Role = model.RoleMember
		}
		if s.Role != model.RoleAdmin && s.Role != model.RoleMember {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s.Role)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: participants are required", ErrInvalidInput)
	}
	return out, nil
}

// normalizeMembers dedupes by user id keeping first occurrence, and forces the
// creator to admin regardless of any conflicting entry supplied for them.
func normalizeMembers(specs []ParticipantSpec, creatorID string) []ParticipantSpec {
	out := make([]ParticipantSpec, 0, len(specs)+1)
	out = append(out, ParticipantSpec{UserID: creatorID, Role: model.RoleAdmin})
	seen := map[string]struct{}{creatorID: {}}
	for _, s := range specs {
		if _, ok := seen[s.UserID]; ok {
			continue
		}
		seen[s.UserID] = struct{}{}
		out = append(out, s)
	}
	return out
}
