package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"harmony-go/internal/middleware"
	"harmony-go/internal/models"
	"harmony-go/internal/services"
)

// TeamHandler handles HTTP requests related to teams.
type TeamHandler struct {
	teamService services.TeamService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(ts services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: ts}
}

// CreateTeamPayload is the request body for creating a team.
type CreateTeamPayload struct {
	Name string `json:"name"`
}

// CreateTeamHandler handles POST /api/v1/teams
func (h *TeamHandler) CreateTeamHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var payload CreateTeamPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	team, err := h.teamService.CreateTeam(r.Context(), ownerID, payload.Name)
	if err != nil {
		if errors.Is(err, services.ErrTeamNameRequired) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error creating team for user %d: %v", ownerID, err)
			writeJSONError(w, "failed to create team", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, team)
}

// ListTeamsHandler handles GET /api/v1/teams
func (h *TeamHandler) ListTeamsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	teams, err := h.teamService.ListTeams(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing teams for user %d: %v", userID, err)
		writeJSONError(w, "failed to list teams", http.StatusInternalServerError)
		return
	}

	if teams == nil {
		teams = []models.Team{}
	}
	writeJSONResponse(w, http.StatusOK, teams)
}
