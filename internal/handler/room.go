package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/travelbuddy/internal/blob"
	"github.com/travelbuddy/internal/chat"
	"github.com/travelbuddy/internal/middleware"
	"github.com/travelbuddy/internal/model"
)

// RoomHandler exposes the chat facade over HTTP. It owns no business rules:
// everything is parsed here and decided in the service.
type RoomHandler struct {
	svc       *chat.Service
	local     *blob.LocalStore
	maxUpload int64
}

// NewRoomHandler creates the handler. local may be nil when avatars are
// stored by the remote file service.
func NewRoomHandler(svc *chat.Service, local *blob.LocalStore, maxUpload int64) *RoomHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &RoomHandler{svc: svc, local: local, maxUpload: maxUpload}
}

type createGroupJSONRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Visibility   string `json:"visibility"`
	Participants string `json:"participants"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// CreateGroup handles POST /api/activities/{activityID}/room. Clients send
// multipart/form-data when attaching an avatar, plain JSON otherwise.
func (h *RoomHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	activityID := chi.URLParam(r, "activityID")

	params := chat.CreateGroupParams{
		ActivityID:  activityID,
		RequesterID: userID,
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		params.Name = r.FormValue("name")
		params.Description = r.FormValue("description")
		params.Visibility = model.Visibility(r.FormValue("visibility"))
		params.Participants = r.FormValue("participants")

		if file, header, err := r.FormFile("avatar"); err == nil {
			defer file.Close()
			params.Avatar = &chat.AvatarUpload{
				FileName: header.Filename,
				Content:  file,
				Size:     header.Size,
			}
		}
	} else {
		var req createGroupJSONRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		params.Name = req.Name
		params.Description = req.Description
		params.Visibility = model.Visibility(req.Visibility)
		params.Participants = req.Participants
	}

	room, err := h.svc.CreateGroup(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// JoinGroup handles POST /api/rooms/{roomID}/join.
func (h *RoomHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	joined, err := h.svc.JoinGroup(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

// ListMyRooms handles GET /api/rooms.
func (h *RoomHandler) ListMyRooms(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rooms, err := h.svc.ListUserGroups(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoomByActivity handles GET /api/activities/{activityID}/room.
func (h *RoomHandler) GetRoomByActivity(w http.ResponseWriter, r *http.Request) {
	activityID := chi.URLParam(r, "activityID")

	room, err := h.svc.GetRoomByActivity(r.Context(), activityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ListMembers handles GET /api/rooms/{roomID}/members.
func (h *RoomHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	members, err := h.svc.ListMembers(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

// GetMessages handles GET /api/rooms/{roomID}/messages?limit=N.
// Without a limit the full history is returned, oldest first.
func (h *RoomHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")
	limit := queryInt(r, "limit", 0)

	messages, err := h.svc.ListMessages(r.Context(), roomID, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// PostMessage handles POST /api/rooms/{roomID}/messages. The REST path
// shares all semantics with the socket path, including fan-out.
func (h *RoomHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	msg, err := h.svc.PostMessage(r.Context(), roomID, userID, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ServeAvatar handles GET /api/avatars/{name} when avatars are stored
// locally.
func (h *RoomHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	name := chi.URLParam(r, "name")
	http.ServeFile(w, r, h.local.ServePath(name))
}
