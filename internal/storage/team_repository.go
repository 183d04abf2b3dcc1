package storage

import (
	"context"

	"gorm.io/gorm"

	"harmony-go/internal/models"
)

// TeamRepository defines the interface for team and membership data
// operations.
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	// FindByUIDAndName resolves a non-deleted team by its external (uid,
	// name) pair. Both fields participate in the lookup.
	FindByUIDAndName(ctx context.Context, uid, name string) (*models.Team, error)
	// IsOwner reports whether the user owns the team.
	IsOwner(ctx context.Context, teamID, userID uint) (bool, error)
	// IsMember reports whether a non-deleted membership link exists.
	IsMember(ctx context.Context, teamID, userID uint) (bool, error)
	AddMember(ctx context.Context, link *models.TeamLink) error
	// FindTeamsFor returns all non-deleted teams the user owns or is a
	// member of.
	FindTeamsFor(ctx context.Context, userID uint) ([]models.Team, error)
}

type gormTeamRepository struct {
	db *gorm.DB
}

// NewGormTeamRepository creates a new GORM-based TeamRepository.
func NewGormTeamRepository(db *gorm.DB) TeamRepository {
	return &gormTeamRepository{db: db}
}

func (r *gormTeamRepository) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *gormTeamRepository) FindByUIDAndName(ctx context.Context, uid, name string) (*models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).
		Where("uid = ? AND name = ? AND deleted = ?", uid, name, false).
		First(&team).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *gormTeamRepository) IsOwner(ctx context.Context, teamID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ? AND owner_id = ? AND deleted = ?", teamID, userID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormTeamRepository) IsMember(ctx context.Context, teamID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamLink{}).
		Where("team_id = ? AND add_user = ? AND deleted = ?", teamID, userID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormTeamRepository) AddMember(ctx context.Context, link *models.TeamLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *gormTeamRepository) FindTeamsFor(ctx context.Context, userID uint) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).
		Joins("LEFT JOIN teamslinks tl ON tl.team_id = teams.id AND tl.deleted = false").
		Where("(teams.owner_id = ? OR tl.add_user = ?) AND teams.deleted = ?", userID, userID, false).
		Distinct("teams.*").
		Find(&teams).Error
	return teams, err
}
