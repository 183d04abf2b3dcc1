package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"harmony-go/internal/config"
	"harmony-go/internal/kafka"
	"harmony-go/internal/models"
	"harmony-go/internal/storage"
)

var (
	ErrTargetNotFound  = errors.New("target user not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrAlreadyInvited  = errors.New("user already invited to team")
	ErrAlreadyMember   = errors.New("user is already in the team")

	// ErrAlreadyResolved is surfaced when a request is resolved a second
	// time. The store is the arbiter; the service re-exports its sentinel.
	ErrAlreadyResolved = storage.ErrAlreadyResolved
)

// RequestEvent is the Kafka message published on request lifecycle changes.
// The realtime layer consumes these to push updates to connected clients.
type RequestEvent struct {
	Type       string                  `json:"type"` // "request.created" or "request.resolved"
	UID        string                  `json:"uid"`
	Operation  models.RequestOperation `json:"operation"`
	SenderID   uint                    `json:"senderId"`
	ReceiverID uint                    `json:"receiverId"`
	Status     models.RequestStatus    `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
}

// IncomingRequest is the listing DTO for a pending request addressed to a
// user, enriched with the sender's public info. Team is set only for team
// invites.
type IncomingRequest struct {
	UID       string                    `json:"uid"`
	CreatedAt time.Time                 `json:"createdAt"`
	Sender    *models.UserBasicInfo     `json:"sender"`
	Team      *models.TeamInvitePayload `json:"team,omitempty"`
}

// RequestService is the workflow engine for friend requests and team
// invites: creation with eligibility checks, incoming listings, and
// exactly-once resolution.
type RequestService interface {
	CreateFriendRequest(ctx context.Context, senderID uint, targetEmail string) (string, error)
	ListIncomingFriendRequests(ctx context.Context, userID uint) ([]*IncomingRequest, error)
	ResolveFriendRequest(ctx context.Context, uid string, accepted bool) error

	CreateTeamInviteRequest(ctx context.Context, senderID uint, targetEmail, teamUID, teamName string) (string, error)
	ListIncomingTeamInviteRequests(ctx context.Context, userID uint) ([]*IncomingRequest, error)
	ResolveTeamInviteRequest(ctx context.Context, uid string, accepted bool) error

	ListFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
}

type requestService struct {
	tx          storage.TxManager
	userRepo    storage.UserRepository
	requestRepo storage.RequestRepository
	linkRepo    storage.UserLinkRepository
	teamRepo    storage.TeamRepository
	producer    kafka.MessageProducer
	kafkaCfg    config.KafkaConfig

	// generateUID is swappable for tests.
	generateUID func() (string, error)
}

// NewRequestService creates a new RequestService instance.
func NewRequestService(
	tx storage.TxManager,
	userRepo storage.UserRepository,
	requestRepo storage.RequestRepository,
	linkRepo storage.UserLinkRepository,
	teamRepo storage.TeamRepository,
	producer kafka.MessageProducer,
	kafkaCfg config.KafkaConfig,
) RequestService {
	return &requestService{
		tx:          tx,
		userRepo:    userRepo,
		requestRepo: requestRepo,
		linkRepo:    linkRepo,
		teamRepo:    teamRepo,
		producer:    producer,
		kafkaCfg:    kafkaCfg,
		generateUID: GenerateUID,
	}
}

// CreateFriendRequest creates a pending addFriend request addressed to the
// user behind targetEmail and returns its uid. Beyond target existence there
// is no duplicate pre-check for friend requests.
func (s *requestService) CreateFriendRequest(ctx context.Context, senderID uint, targetEmail string) (string, error) {
	targetID, err := s.userRepo.FindIDByEmail(ctx, targetEmail)
	if err != nil {
		return "", fmt.Errorf("resolving target user: %w", err)
	}
	if targetID == 0 {
		return "", ErrTargetNotFound
	}

	uid, err := allocateRequestUID(ctx, s.requestRepo, s.generateUID)
	if err != nil {
		return "", err
	}

	request := &models.Request{
		UID:        uid,
		SenderID:   senderID,
		ReceiverID: targetID,
		Operation:  models.OperationAddFriend,
		Status:     models.RequestStatusPending,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return "", fmt.Errorf("creating friend request: %w", err)
	}

	s.publishEvent(ctx, "request.created", request)
	return uid, nil
}

// CreateTeamInviteRequest creates a pending addToTeam request carrying the
// team reference as its payload. The target must exist and must not already
// be invited to, a member of, or the owner of the team.
func (s *requestService) CreateTeamInviteRequest(ctx context.Context, senderID uint, targetEmail, teamUID, teamName string) (string, error) {
	targetID, err := s.userRepo.FindIDByEmail(ctx, targetEmail)
	if err != nil {
		return "", fmt.Errorf("resolving target user: %w", err)
	}
	if targetID == 0 {
		return "", ErrTargetNotFound
	}

	team, err := s.teamRepo.FindByUIDAndName(ctx, teamUID, teamName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTeamNotFound
		}
		return "", fmt.Errorf("resolving team: %w", err)
	}

	if err := s.checkTeamEligibility(ctx, team, targetID); err != nil {
		return "", err
	}

	uid, err := allocateRequestUID(ctx, s.requestRepo, s.generateUID)
	if err != nil {
		return "", err
	}

	request := &models.Request{
		UID:        uid,
		SenderID:   senderID,
		ReceiverID: targetID,
		Status:     models.RequestStatusPending,
	}
	if err := request.SetTeamPayload(models.TeamInvitePayload{TeamUID: team.UID, TeamName: team.Name}); err != nil {
		return "", err
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return "", fmt.Errorf("creating team invite: %w", err)
	}

	s.publishEvent(ctx, "request.created", request)
	return uid, nil
}

// checkTeamEligibility rejects an invite when the target already has a
// pending invite whose payload resolves to the same team, or already belongs
// to the team. Membership and ownership are deliberately reported as one
// reason.
func (s *requestService) checkTeamEligibility(ctx context.Context, team *models.Team, targetID uint) error {
	pending, err := s.requestRepo.FindPendingForReceiver(ctx, targetID, models.OperationAddToTeam)
	if err != nil {
		return fmt.Errorf("checking pending invites: %w", err)
	}
	for i := range pending {
		payload, err := pending[i].TeamPayload()
		if err != nil {
			log.Printf("Skipping request %s with undecodable payload: %v", pending[i].UID, err)
			continue
		}
		if payload.TeamUID == team.UID && payload.TeamName == team.Name {
			return ErrAlreadyInvited
		}
	}

	isMember, err := s.teamRepo.IsMember(ctx, team.ID, targetID)
	if err != nil {
		return fmt.Errorf("checking team membership: %w", err)
	}
	isOwner, err := s.teamRepo.IsOwner(ctx, team.ID, targetID)
	if err != nil {
		return fmt.Errorf("checking team ownership: %w", err)
	}
	if isMember || isOwner {
		return ErrAlreadyMember
	}
	return nil
}

// ListIncomingFriendRequests lists open friend requests addressed to the
// user, oldest first.
func (s *requestService) ListIncomingFriendRequests(ctx context.Context, userID uint) ([]*IncomingRequest, error) {
	return s.listIncoming(ctx, userID, models.OperationAddFriend)
}

// ListIncomingTeamInviteRequests lists open team invites addressed to the
// user, oldest first, each carrying its team reference.
func (s *requestService) ListIncomingTeamInviteRequests(ctx context.Context, userID uint) ([]*IncomingRequest, error) {
	return s.listIncoming(ctx, userID, models.OperationAddToTeam)
}

func (s *requestService) listIncoming(ctx context.Context, userID uint, op models.RequestOperation) ([]*IncomingRequest, error) {
	pending, err := s.requestRepo.FindPendingForReceiver(ctx, userID, op)
	if err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}

	result := make([]*IncomingRequest, 0, len(pending))
	for i := range pending {
		req := &pending[i]
		sender, err := s.userRepo.GetBasicInfoByID(ctx, req.SenderID)
		if err != nil {
			log.Printf("Error fetching sender info for user %d (request %s): %v", req.SenderID, req.UID, err)
			continue
		}
		item := &IncomingRequest{
			UID:       req.UID,
			CreatedAt: req.CreatedAt,
			Sender:    sender,
		}
		if op == models.OperationAddToTeam {
			payload, err := req.TeamPayload()
			if err != nil {
				log.Printf("Skipping request %s with undecodable payload: %v", req.UID, err)
				continue
			}
			item.Team = &payload
		}
		result = append(result, item)
	}
	return result, nil
}

// ResolveFriendRequest resolves an addFriend request exactly once. Accepting
// creates the friend link between sender and receiver.
func (s *requestService) ResolveFriendRequest(ctx context.Context, uid string, accepted bool) error {
	return s.resolveRequest(ctx, models.OperationAddFriend, uid, accepted)
}

// ResolveTeamInviteRequest resolves an addToTeam request exactly once.
// Accepting adds the receiver to the team referenced by the stored payload.
func (s *requestService) ResolveTeamInviteRequest(ctx context.Context, uid string, accepted bool) error {
	return s.resolveRequest(ctx, models.OperationAddToTeam, uid, accepted)
}

// resolveRequest is the single resolution entry point for every operation
// kind. The accept path runs in one transaction: the conditional terminal
// update claims the request first, so of two concurrent resolves exactly one
// proceeds to materialize the relationship and the other fails with
// ErrAlreadyResolved before any side effect.
func (s *requestService) resolveRequest(ctx context.Context, op models.RequestOperation, uid string, accepted bool) error {
	if !accepted {
		request, err := s.requestRepo.FindByUID(ctx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("retrieving request: %w", err)
		}
		if request.Operation != op {
			return ErrRequestNotFound
		}
		if err := s.requestRepo.MarkResolved(ctx, uid, models.RequestStatusDeclined); err != nil {
			return err
		}
		request.Status = models.RequestStatusDeclined
		s.publishEvent(ctx, "request.resolved", request)
		return nil
	}

	var resolved *models.Request
	err := s.tx.RunInTransaction(ctx, func(repos storage.TxRepositories) error {
		request, err := repos.Requests.FindByUID(ctx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("retrieving request: %w", err)
		}
		if request.Operation != op {
			return ErrRequestNotFound
		}

		// Claim the request before touching any relationship. A zero-row
		// update means someone else already resolved it.
		if err := repos.Requests.MarkResolved(ctx, uid, models.RequestStatusAccepted); err != nil {
			return err
		}

		if err := s.materialize(ctx, repos, request); err != nil {
			return err
		}

		request.Status = models.RequestStatusAccepted
		resolved = request
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, "request.resolved", resolved)
	return nil
}

// materialize creates the concrete relationship for an accepted request,
// using only data embedded in the stored record.
func (s *requestService) materialize(ctx context.Context, repos storage.TxRepositories, request *models.Request) error {
	switch request.Operation {
	case models.OperationAddFriend:
		link := &models.UserLink{
			UserID1: request.SenderID,
			UserID2: request.ReceiverID,
		}
		if err := repos.UserLinks.Create(ctx, link); err != nil {
			return fmt.Errorf("creating friend link: %w", err)
		}
		return nil
	case models.OperationAddToTeam:
		payload, err := request.TeamPayload()
		if err != nil {
			return err
		}
		team, err := repos.Teams.FindByUIDAndName(ctx, payload.TeamUID, payload.TeamName)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTeamNotFound
			}
			return fmt.Errorf("resolving team for invite %s: %w", request.UID, err)
		}
		member := &models.TeamLink{
			TeamID: team.ID,
			UserID: request.ReceiverID,
		}
		if err := repos.Teams.AddMember(ctx, member); err != nil {
			return fmt.Errorf("adding team member: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown request operation %q on %s", request.Operation, request.UID)
	}
}

// ListFriends retrieves the public info of everyone linked to the user.
func (s *requestService) ListFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	links, err := s.linkRepo.FindLinksFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friend links: %w", err)
	}

	friends := make([]*models.UserBasicInfo, 0, len(links))
	for i := range links {
		otherID := links[i].OtherUser(userID)
		if otherID == 0 {
			continue
		}
		info, err := s.userRepo.GetBasicInfoByID(ctx, otherID)
		if err != nil {
			log.Printf("Error fetching friend info for user %d: %v", otherID, err)
			continue
		}
		friends = append(friends, info)
	}
	return friends, nil
}

// publishEvent emits a lifecycle event for the realtime layer. Delivery is
// best effort: a broker outage must not fail the API call.
func (s *requestService) publishEvent(ctx context.Context, eventType string, request *models.Request) {
	if s.producer == nil || request == nil {
		return
	}
	event := RequestEvent{
		Type:       eventType,
		UID:        request.UID,
		Operation:  request.Operation,
		SenderID:   request.SenderID,
		ReceiverID: request.ReceiverID,
		Status:     request.Status,
		Timestamp:  time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling request event for Kafka: %v", err)
		return
	}
	if err := s.producer.SendMessage(ctx, s.kafkaCfg.RequestEventsTopic, []byte(request.UID), payload); err != nil {
		log.Printf("Error publishing request event to topic %s: %v", s.kafkaCfg.RequestEventsTopic, err)
	}
}
