package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"harmony-go/internal/models"
	"harmony-go/internal/storage"
)

var ErrTeamNameRequired = errors.New("team name must not be empty")

// TeamService defines the interface for team management.
type TeamService interface {
	CreateTeam(ctx context.Context, ownerID uint, name string) (*models.Team, error)
	ListTeams(ctx context.Context, userID uint) ([]models.Team, error)
}

type teamService struct {
	teamRepo storage.TeamRepository

	generateUID func() (string, error)
}

// NewTeamService creates a new TeamService instance.
func NewTeamService(teamRepo storage.TeamRepository) TeamService {
	return &teamService{
		teamRepo:    teamRepo,
		generateUID: GenerateUID,
	}
}

// CreateTeam creates a team owned by the caller and links the owner as its
// first member. The call link is derived from the slugged name and uid.
func (s *teamService) CreateTeam(ctx context.Context, ownerID uint, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	uid, err := s.generateUID()
	if err != nil {
		return nil, fmt.Errorf("generating team uid: %w", err)
	}
	slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")

	team := &models.Team{
		UID:      uid,
		Name:     name,
		OwnerID:  ownerID,
		CallLink: slug + "/" + uid,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	ownerLink := &models.TeamLink{
		TeamID: team.ID,
		UserID: ownerID,
	}
	if err := s.teamRepo.AddMember(ctx, ownerLink); err != nil {
		return nil, fmt.Errorf("linking owner to team: %w", err)
	}

	return team, nil
}

// ListTeams returns all teams the user owns or has joined.
func (s *teamService) ListTeams(ctx context.Context, userID uint) ([]models.Team, error) {
	teams, err := s.teamRepo.FindTeamsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}
