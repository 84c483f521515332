package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/travelbuddy/internal/broker"
	"github.com/travelbuddy/internal/model"
	"github.com/travelbuddy/internal/repository"
)

// --- in-memory fakes ---

type fakeRooms struct {
	rooms      map[string]*model.Room
	byActivity map[string]*model.Room
	members    map[string][]model.Membership
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{
		rooms:      make(map[string]*model.Room),
		byActivity: make(map[string]*model.Room),
		members:    make(map[string][]model.Membership),
	}
}

func (f *fakeRooms) CreateRoom(_ context.Context, room *model.Room, members []model.Membership) error {
	if _, ok := f.byActivity[room.ActivityID]; ok {
		return repository.ErrDuplicate
	}
	r := *room
	f.rooms[room.ID] = &r
	f.byActivity[room.ActivityID] = &r
	f.members[room.ID] = append([]model.Membership(nil), members...)
	return nil
}

func (f *fakeRooms) GetByID(_ context.Context, id string) (*model.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeRooms) GetByActivity(_ context.Context, activityID string) (*model.Room, error) {
	r, ok := f.byActivity[activityID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeRooms) AddMember(_ context.Context, m *model.Membership) error {
	for _, existing := range f.members[m.RoomID] {
		if existing.UserID == m.UserID {
			return nil
		}
	}
	f.members[m.RoomID] = append(f.members[m.RoomID], *m)
	return nil
}

func (f *fakeRooms) ListMembers(_ context.Context, roomID string) ([]model.Membership, error) {
	return append([]model.Membership(nil), f.members[roomID]...), nil
}

func (f *fakeRooms) MemberIDs(_ context.Context, roomID string) ([]string, error) {
	ids := make([]string, 0, len(f.members[roomID]))
	for _, m := range f.members[roomID] {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (f *fakeRooms) GetUserRooms(_ context.Context, userID string) ([]model.Room, error) {
	var out []model.Room
	for roomID, members := range f.members {
		for _, m := range members {
			if m.UserID == userID {
				out = append(out, *f.rooms[roomID])
				break
			}
		}
	}
	return out, nil
}

type fakeMessages struct {
	mu      sync.Mutex
	log     []model.Message
	nextSeq int64
	failing bool
}

func (f *fakeMessages) Append(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store down")
	}
	f.nextSeq++
	m.Seq = f.nextSeq
	f.log = append(f.log, *m)
	return nil
}

func (f *fakeMessages) History(_ context.Context, roomID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.log {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeActivities struct {
	activities map[string]*model.Activity
}

func (f *fakeActivities) GetByID(_ context.Context, id string) (*model.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakeActivities) SetHasRoom(_ context.Context, id string, has bool) error {
	a, ok := f.activities[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.HasRoom = has
	return nil
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id string) (*model.UserPublic, error) {
	return &model.UserPublic{ID: id, Username: "user-" + id}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []broker.Event
}

func (f *fakePublisher) Publish(_ string, ev broker.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

type fixture struct {
	svc        *Service
	rooms      *fakeRooms
	messages   *fakeMessages
	activities *fakeActivities
	pub        *fakePublisher
}

func newFixture() *fixture {
	rooms := newFakeRooms()
	messages := &fakeMessages{}
	activities := &fakeActivities{activities: map[string]*model.Activity{
		"act-1": {ID: "act-1", CreatorID: "creator", Participants: []string{"u1", "u2"}},
	}}
	pub := &fakePublisher{}
	svc := NewService(rooms, messages, activities, fakeUsers{}, pub, nil)
	return &fixture{svc: svc, rooms: rooms, messages: messages, activities: activities, pub: pub}
}

func (f *fixture) createRoom(t *testing.T, requester string) *model.Room {
	t.Helper()
	room, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-1",
		RequesterID:  requester,
		Name:         "Lisbon trip",
		Participants: `["u1"]`,
	})
	require.NoError(t, err)
	return room
}

// --- CreateGroup ---

func TestCreateGroup_CreatorBecomesAdmin(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	// The participant list names the creator as a plain member; the forced
	// admin entry wins.
	room, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-1",
		RequesterID:  "creator",
		Name:         "  Lisbon trip  ",
		Participants: `[{"user_id":"creator","role":"member"},{"user_id":"u1"},{"user_id":"u1"}]`,
	})
	req.NoError(err)
	req.Equal("Lisbon trip", room.Name)
	req.Equal(model.VisibilityPrivate, room.Visibility)
	req.Equal("creator", room.CreatedBy)

	members, err := f.rooms.ListMembers(context.Background(), room.ID)
	req.NoError(err)
	req.Len(members, 2)
	req.Equal("creator", members[0].UserID)
	req.Equal(model.RoleAdmin, members[0].Role)
	req.Equal("u1", members[1].UserID)
	req.Equal(model.RoleMember, members[1].Role)

	req.True(f.activities.activities["act-1"].HasRoom)
}

func TestCreateGroup_SecondCreateConflicts(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.createRoom(t, "creator")

	_, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-1",
		RequesterID:  "u1",
		Name:         "Another room",
		Participants: `["u2"]`,
	})
	req.ErrorIs(err, ErrConflict)
}

func TestCreateGroup_StoreDuplicateIsConflict(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.createRoom(t, "creator")

	// Simulates the losing writer of a race: the flag lags behind, but the
	// store's unique constraint already holds.
	f.activities.activities["act-1"].HasRoom = false

	_, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-1",
		RequesterID:  "u1",
		Name:         "Racing room",
		Participants: `["u2"]`,
	})
	req.ErrorIs(err, ErrConflict)
}

func TestCreateGroup_InvalidInput(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name   string
		params CreateGroupParams
	}{
		{"empty name", CreateGroupParams{ActivityID: "act-1", RequesterID: "creator", Name: "   ", Participants: `["u1"]`}},
		{"no participants", CreateGroupParams{ActivityID: "act-1", RequesterID: "creator", Name: "Trip", Participants: ""}},
		{"malformed participants", CreateGroupParams{ActivityID: "act-1", RequesterID: "creator", Name: "Trip", Participants: `{"oops"`}},
		{"unknown role", CreateGroupParams{ActivityID: "act-1", RequesterID: "creator", Name: "Trip", Participants: `[{"user_id":"u1","role":"owner"}]`}},
		{"unknown visibility", CreateGroupParams{ActivityID: "act-1", RequesterID: "creator", Name: "Trip", Visibility: "hidden", Participants: `["u1"]`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateGroup(context.Background(), tc.params)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateGroup_OutsiderForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-1",
		RequesterID:  "stranger",
		Name:         "Trip",
		Participants: `["u1"]`,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateGroup_UnknownActivityNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateGroup(context.Background(), CreateGroupParams{
		ActivityID:   "act-missing",
		RequesterID:  "creator",
		Name:         "Trip",
		Participants: `["u1"]`,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

// --- JoinGroup ---

func TestJoinGroup_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	// u2 was not in the initial member list but participates in the activity.
	joined, err := f.svc.JoinGroup(context.Background(), room.ID, "u2")
	req.NoError(err)
	req.Equal(room.ID, joined.Room.ID)
	req.Len(joined.Members, 3)
	req.Equal("u2", joined.Members[2].UserID)
	req.Equal(model.RoleMember, joined.Members[2].Role)

	again, err := f.svc.JoinGroup(context.Background(), room.ID, "u2")
	req.NoError(err)
	req.Equal(joined.Members, again.Members)
}

func TestJoinGroup_OutsiderForbidden(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t, "creator")

	_, err := f.svc.JoinGroup(context.Background(), room.ID, "stranger")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestJoinGroup_UnknownRoomNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.JoinGroup(context.Background(), "room-missing", "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- PostMessage ---

func TestPostMessage_PersistsThenPublishes(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	msg, err := f.svc.PostMessage(context.Background(), room.ID, "u1", "  hello everyone  ")
	req.NoError(err)
	req.Equal("hello everyone", msg.Text)
	req.Equal(int64(1), msg.Seq)
	req.NotNil(msg.Sender)
	req.Equal("user-u1", msg.Sender.Username)

	req.Len(f.pub.events, 1)
	ev := f.pub.events[0]
	req.Equal(broker.EventNewMessage, ev.Type)
	req.Equal(room.ID, ev.RoomID)
	req.Equal(msg.ID, ev.Message.ID)
}

func TestPostMessage_NonMemberForbiddenAndNothingHappens(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	// u2 is an activity participant but never joined the room.
	_, err := f.svc.PostMessage(context.Background(), room.ID, "u2", "let me in")
	req.ErrorIs(err, ErrForbidden)
	req.Empty(f.messages.log)
	req.Empty(f.pub.events)
}

func TestPostMessage_WhitespaceOnlyInvalid(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	_, err := f.svc.PostMessage(context.Background(), room.ID, "creator", "   \n\t ")
	req.ErrorIs(err, ErrInvalidInput)
	req.Empty(f.messages.log)
}

func TestPostMessage_NonMemberWhitespaceStillForbidden(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	// The membership gate answers before input validation does.
	_, err := f.svc.PostMessage(context.Background(), room.ID, "u2", "   ")
	req.ErrorIs(err, ErrForbidden)
	req.NotErrorIs(err, ErrInvalidInput)
}

func TestPostMessage_StoreDownNothingPublished(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")
	f.messages.failing = true

	_, err := f.svc.PostMessage(context.Background(), room.ID, "creator", "hello")
	req.ErrorIs(err, ErrUnavailable)
	req.Empty(f.pub.events)
}

// --- ListMessages ---

func TestListMessages_OrderedAndGated(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	for i := 0; i < 5; i++ {
		_, err := f.svc.PostMessage(context.Background(), room.ID, "creator", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	history, err := f.svc.ListMessages(context.Background(), room.ID, "u1", 0)
	req.NoError(err)
	req.Len(history, 5)
	for i := 1; i < len(history); i++ {
		req.Greater(history[i].Seq, history[i-1].Seq)
	}

	limited, err := f.svc.ListMessages(context.Background(), room.ID, "u1", 2)
	req.NoError(err)
	req.Len(limited, 2)
	req.Equal("message 3", limited[0].Text)
	req.Equal("message 4", limited[1].Text)

	_, err = f.svc.ListMessages(context.Background(), room.ID, "u2", 0)
	req.ErrorIs(err, ErrForbidden)
}

func TestPostMessage_ConcurrentAppendsKeepTotalOrder(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	const writers = 8
	const perWriter = 25
	errs := make(chan error, writers*perWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := f.svc.PostMessage(context.Background(), room.ID, "creator", fmt.Sprintf("writer %d message %d", w, i))
				errs <- err
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	history, err := f.svc.ListMessages(context.Background(), room.ID, "u1", 0)
	req.NoError(err)
	req.Len(history, writers*perWriter)
	for i := 1; i < len(history); i++ {
		req.Greater(history[i].Seq, history[i-1].Seq)
	}
}

// --- lookups ---

func TestGetRoomByActivity(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	found, err := f.svc.GetRoomByActivity(context.Background(), "act-1")
	req.NoError(err)
	req.Equal(room.ID, found.ID)

	_, err = f.svc.GetRoomByActivity(context.Background(), "act-2")
	req.ErrorIs(err, ErrNotFound)
}

func TestListUserGroups(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.createRoom(t, "creator")

	rooms, err := f.svc.ListUserGroups(context.Background(), "u1")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(room.ID, rooms[0].ID)

	rooms, err = f.svc.ListUserGroups(context.Background(), "stranger")
	req.NoError(err)
	req.Empty(rooms)
}
