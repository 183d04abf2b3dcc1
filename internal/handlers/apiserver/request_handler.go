package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"harmony-go/internal/middleware"
	"harmony-go/internal/models"
	"harmony-go/internal/services"
)

// RequestHandler handles HTTP requests for friend requests and team invites.
type RequestHandler struct {
	requestService services.RequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(rs services.RequestService) *RequestHandler {
	return &RequestHandler{requestService: rs}
}

// CreateFriendRequestPayload is the request body for sending a friend request.
type CreateFriendRequestPayload struct {
	TargetEmail string `json:"targetEmail"`
}

// CreateTeamInvitePayload is the request body for sending a team invite.
type CreateTeamInvitePayload struct {
	TargetEmail string `json:"targetEmail"`
	TeamUID     string `json:"teamUid"`
	TeamName    string `json:"teamName"`
}

// ResolveRequestPayload is the request body for resolving a request.
type ResolveRequestPayload struct {
	Accepted bool `json:"accepted"`
}

// CreatedResponse carries the uid of a freshly created request.
type CreatedResponse struct {
	UID string `json:"uid"`
}

// CreateFriendRequestHandler handles POST /api/v1/friend-requests
func (h *RequestHandler) CreateFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var payload CreateFriendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.TargetEmail == "" {
		writeJSONError(w, "targetEmail is required", http.StatusBadRequest)
		return
	}

	uid, err := h.requestService.CreateFriendRequest(r.Context(), senderID, payload.TargetEmail)
	if err != nil {
		if errors.Is(err, services.ErrTargetNotFound) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error creating friend request from %d: %v", senderID, err)
			writeJSONError(w, "failed to create friend request", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, CreatedResponse{UID: uid})
}

// CreateTeamInviteHandler handles POST /api/v1/team-invites
func (h *RequestHandler) CreateTeamInviteHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var payload CreateTeamInvitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.TargetEmail == "" || payload.TeamUID == "" || payload.TeamName == "" {
		writeJSONError(w, "targetEmail, teamUid and teamName are required", http.StatusBadRequest)
		return
	}

	uid, err := h.requestService.CreateTeamInviteRequest(r.Context(), senderID, payload.TargetEmail, payload.TeamUID, payload.TeamName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTargetNotFound), errors.Is(err, services.ErrTeamNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrAlreadyInvited), errors.Is(err, services.ErrAlreadyMember):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error creating team invite from %d: %v", senderID, err)
			writeJSONError(w, "failed to create team invite", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, CreatedResponse{UID: uid})
}

// ListIncomingFriendRequestsHandler handles GET /api/v1/friend-requests/incoming
func (h *RequestHandler) ListIncomingFriendRequestsHandler(w http.ResponseWriter, r *http.Request) {
	h.listIncoming(w, r, h.requestService.ListIncomingFriendRequests)
}

// ListIncomingTeamInvitesHandler handles GET /api/v1/team-invites/incoming
func (h *RequestHandler) ListIncomingTeamInvitesHandler(w http.ResponseWriter, r *http.Request) {
	h.listIncoming(w, r, h.requestService.ListIncomingTeamInviteRequests)
}

func (h *RequestHandler) listIncoming(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID uint) ([]*services.IncomingRequest, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	incoming, err := list(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing incoming requests for user %d: %v", userID, err)
		writeJSONError(w, "failed to list incoming requests", http.StatusInternalServerError)
		return
	}

	if incoming == nil {
		incoming = []*services.IncomingRequest{}
	}
	writeJSONResponse(w, http.StatusOK, incoming)
}

// ResolveFriendRequestHandler handles POST /api/v1/friend-requests/{uid}/resolve
func (h *RequestHandler) ResolveFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.requestService.ResolveFriendRequest)
}

// ResolveTeamInviteHandler handles POST /api/v1/team-invites/{uid}/resolve
func (h *RequestHandler) ResolveTeamInviteHandler(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.requestService.ResolveTeamInviteRequest)
}

func (h *RequestHandler) resolve(w http.ResponseWriter, r *http.Request, resolveFn func(ctx context.Context, uid string, accepted bool) error) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	uid, ok := mux.Vars(r)["uid"]
	if !ok || uid == "" {
		writeJSONError(w, "missing request uid", http.StatusBadRequest)
		return
	}

	var payload ResolveRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := resolveFn(r.Context(), uid, payload.Accepted); err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrAlreadyResolved):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrTeamNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error resolving request %s: %v", uid, err)
			writeJSONError(w, "failed to resolve request", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "request resolved"})
}

// ListFriendsHandler handles GET /api/v1/friends
func (h *RequestHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	friends, err := h.requestService.ListFriends(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching friends list for user %d: %v", userID, err)
		writeJSONError(w, "failed to fetch friends list", http.StatusInternalServerError)
		return
	}

	if friends == nil {
		friends = []*models.UserBasicInfo{}
	}
	writeJSONResponse(w, http.StatusOK, friends)
}
