package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/travelbuddy/internal/model"
)

func TestCanJoin(t *testing.T) {
	req := require.New(t)
	activity := &model.Activity{
		ID:           "act-1",
		CreatorID:    "creator",
		Participants: []string{"u1", "u2"},
	}

	req.True(CanJoin(activity, "creator"))
	req.True(CanJoin(activity, "u1"))
	req.False(CanJoin(activity, "stranger"))
	req.False(CanJoin(activity, ""))
	req.False(CanJoin(nil, "u1"))
}

func TestCanReadOrWrite(t *testing.T) {
	req := require.New(t)
	members := []string{"creator", "u1"}

	req.True(CanReadOrWrite(members, "u1"))
	req.False(CanReadOrWrite(members, "u2"))
	req.False(CanReadOrWrite(members, ""))
	req.False(CanReadOrWrite(nil, "u1"))
}
