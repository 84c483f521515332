package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/travelbuddy/internal/broker"
	"github.com/travelbuddy/internal/logger"
	"github.com/travelbuddy/internal/model"
	"github.com/travelbuddy/internal/repository"
)

const avatarUploadTimeout = 10 * time.Second

// RoomStore is the persisted room registry.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *model.Room, members []model.Membership) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetByActivity(ctx context.Context, activityID string) (*model.Room, error)
	AddMember(ctx context.Context, m *model.Membership) error
	ListMembers(ctx context.Context, roomID string) ([]model.Membership, error)
	MemberIDs(ctx context.Context, roomID string) ([]string, error)
	GetUserRooms(ctx context.Context, userID string) ([]model.Room, error)
}

// MessageStore is the append-only message log.
type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	History(ctx context.Context, roomID string, limit int) ([]model.Message, error)
}

// ActivityDirectory is the external activity service contract.
type ActivityDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	SetHasRoom(ctx context.Context, id string, has bool) error
}

// UserDirectory resolves user ids to display fields.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*model.UserPublic, error)
}

// Publisher is the realtime fan-out side of the broker.
type Publisher interface {
	Publish(roomID string, ev broker.Event)
}

// Uploader stores avatars; nil disables avatar support.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader, size int64) (string, error)
}

// Service orchestrates room lifecycle, authorization, persistence and
// fan-out. It is the only entry point for HTTP and socket handlers.
type Service struct {
	rooms      RoomStore
	messages   MessageStore
	activities ActivityDirectory
	users      UserDirectory
	pub        Publisher
	avatars    Uploader
}

func NewService(rooms RoomStore, messages MessageStore, activities ActivityDirectory, users UserDirectory, pub Publisher, avatars Uploader) *Service {
	return &Service{rooms: rooms, messages: messages, activities: activities, users: users, pub: pub, avatars: avatars}
}

// AvatarUpload carries the optional room avatar from a multipart request.
type AvatarUpload struct {
	FileName string
	Content  io.Reader
	Size     int64
}

// CreateGroupParams are the normalized inputs for CreateGroup. Participants
// is the raw client payload; it is parsed here at the boundary.
type CreateGroupParams struct {
	ActivityID   string
	RequesterID  string
	Name         string
	Description  string
	Visibility   model.Visibility
	Participants string
	Avatar       *AvatarUpload
}

// CreateGroup creates the single chat room for an activity. The requester
// must be eligible (activity creator or participant) and becomes an admin
// member regardless of the supplied participant list. Avatar upload failure
// is non-fatal: the room is created without one.
func (s *Service) CreateGroup(ctx context.Context, p CreateGroupParams) (*model.Room, error) {
	defer logger.DeferLogDuration("chat.CreateGroup", time.Now())()

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	visibility := p.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}
	if visibility != model.VisibilityPrivate && visibility != model.VisibilityPublic {
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, p.Visibility)
	}

	specs, err := ParseParticipants(p.Participants)
	if err != nil {
		return nil, err
	}

	activity, err := s.activities.GetByID(ctx, p.ActivityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, p.ActivityID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: activity lookup: %v", ErrUnavailable, err)
	}
	if !CanJoin(activity, p.RequesterID) {
		return nil, fmt.Errorf("%w: not an activity participant", ErrForbidden)
	}
	if activity.HasRoom {
		return nil, fmt.Errorf("%w: activity %s already has a room", ErrConflict, p.ActivityID)
	}

	avatarURL := ""
	if p.Avatar != nil && s.avatars != nil {
		upCtx, cancel := context.WithTimeout(ctx, avatarUploadTimeout)
		url, err := s.avatars.Upload(upCtx, p.Avatar.FileName, p.Avatar.Content, p.Avatar.Size)
		cancel()
		if err != nil {
			// Best effort only: the room is still created.
			logger.Errorf("chat: avatar upload activity=%s: %v", p.ActivityID, err)
		} else {
			avatarURL = url
		}
	}

	now := time.Now().UTC()
	room := &model.Room{
		ID:          uuid.New().String(),
		ActivityID:  p.ActivityID,
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		AvatarURL:   avatarURL,
		Visibility:  visibility,
		CreatedBy:   p.RequesterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	members := make([]model.Membership, 0, len(specs)+1)
	for _, spec := range normalizeMembers(specs, p.RequesterID) {
		members = append(members, model.Membership{
			RoomID:   room.ID,
			UserID:   spec.UserID,
			Role:     spec.Role,
			JoinedAt: now,
		})
	}

	if err := s.rooms.CreateRoom(ctx, room, members); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: activity %s already has a room", ErrConflict, p.ActivityID)
		}
		return nil, fmt.Errorf("%w: create room: %v", ErrUnavailable, err)
	}

	// The unique index is the authority; the flag is a fast-path hint for the
	// activity pages, so a failure here is logged and not surfaced.
	if err := s.activities.SetHasRoom(ctx, p.ActivityID, true); err != nil {
		logger.Errorf("chat: set has_room activity=%s: %v", p.ActivityID, err)
	}

	return room, nil
}

// JoinGroup adds the user to the room if the owning activity allows it and
// returns the room with its member list. Joining twice is a no-op.
func (s *Service) JoinGroup(ctx context.Context, roomID, userID string) (*model.RoomWithMembers, error) {
	defer logger.DeferLogDuration("chat.JoinGroup", time.Now())()

	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: room lookup: %v", ErrUnavailable, err)
	}

	activity, err := s.activities.GetByID(ctx, room.ActivityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, room.ActivityID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: activity lookup: %v", ErrUnavailable, err)
	}

	if !CanJoin(activity, userID) {
		return nil, fmt.Errorf("%w: not an activity participant", ErrForbidden)
	}

	m := &model.Membership{
		RoomID:   roomID,
		UserID:   userID,
		Role:     model.RoleMember,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.rooms.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: add member: %v", ErrUnavailable, err)
	}
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %v", ErrUnavailable, err)
	}
	return &model.RoomWithMembers{Room: *room, Members: members}, nil
}

// PostMessage persists the message, then publishes it to live subscribers.
// Persistence always happens first; a publish problem never rolls back or
// duplicates the stored message.
func (s *Service) PostMessage(ctx context.Context, roomID, userID, text string) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.PostMessage", time.Now())()

	// Membership is checked before input validation: a non-member learns
	// nothing beyond the refusal.
	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is empty", ErrInvalidInput)
	}

	m := &model.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: append message: %v", ErrUnavailable, err)
	}

	if sender, err := s.users.GetByID(ctx, userID); err != nil {
		logger.Errorf("chat: resolve sender user=%s: %v", userID, err)
	} else {
		m.Sender = sender
	}

	// Fire and forget: subscribers that miss this read it from history.
	s.pub.Publish(roomID, broker.Event{Type: broker.EventNewMessage, RoomID: roomID, Message: m})

	return m, nil
}

// ListMessages returns the room history ascending by creation order.
// limit <= 0 returns the full log.
func (s *Service) ListMessages(ctx context.Context, roomID, userID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("chat.ListMessages", time.Now())()

	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return nil, err
	}
	messages, err := s.messages.History(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrUnavailable, err)
	}
	return messages, nil
}

// ListUserGroups returns every room the user is a member of.
func (s *Service) ListUserGroups(ctx context.Context, userID string) ([]model.Room, error) {
	defer logger.DeferLogDuration("chat.ListUserGroups", time.Now())()
	rooms, err := s.rooms.GetUserRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user rooms: %v", ErrUnavailable, err)
	}
	return rooms, nil
}

// GetRoomByActivity returns the activity's room for the activity page.
func (s *Service) GetRoomByActivity(ctx context.Context, activityID string) (*model.Room, error) {
	defer logger.DeferLogDuration("chat.GetRoomByActivity", time.Now())()
	room, err := s.rooms.GetByActivity(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no room for activity %s", ErrNotFound, activityID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: room lookup: %v", ErrUnavailable, err)
	}
	return room, nil
}

// ListMembers returns the room's memberships in join order, gated by
// membership of the requesting user.
func (s *Service) ListMembers(ctx context.Context, roomID, userID string) ([]model.Membership, error) {
	defer logger.DeferLogDuration("chat.ListMembers", time.Now())()
	if err := s.Authorize(ctx, roomID, userID); err != nil {
		return nil, err
	}
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %v", ErrUnavailable, err)
	}
	return members, nil
}

// Authorize checks that userID is a member of roomID. Used before every read
// or write, including socket channel subscriptions.
func (s *Service) Authorize(ctx context.Context, roomID, userID string) error {
	memberIDs, err := s.rooms.MemberIDs(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: membership check: %v", ErrUnavailable, err)
	}
	if !CanReadOrWrite(memberIDs, userID) {
		return fmt.Errorf("%w: not a room member", ErrForbidden)
	}
	return nil
}
