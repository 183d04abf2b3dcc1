package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"harmony-go/internal/config"
	"harmony-go/internal/models"
	"harmony-go/internal/storage"
)

// fakeUserRepo resolves users from in-memory maps.
type fakeUserRepo struct {
	byEmail map[string]uint
	byID    map[uint]*models.UserBasicInfo
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (f *fakeUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if _, ok := f.byID[id]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{BaseModel: models.BaseModel{ID: id}}, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{BaseModel: models.BaseModel{ID: id}, Email: email}, nil
}

func (f *fakeUserRepo) FindIDByEmail(ctx context.Context, email string) (uint, error) {
	return f.byEmail[email], nil
}

func (f *fakeUserRepo) GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error) {
	info, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return info, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

// fakeRequestRepo stores requests in a slice and mimics the conditional
// terminal update of the real repository.
type fakeRequestRepo struct {
	requests []*models.Request
	nextID   uint
}

func (f *fakeRequestRepo) Create(ctx context.Context, request *models.Request) error {
	f.nextID++
	request.ID = f.nextID
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}
	f.requests = append(f.requests, request)
	return nil
}

func (f *fakeRequestRepo) FindByUID(ctx context.Context, uid string) (*models.Request, error) {
	for _, r := range f.requests {
		if r.UID == uid {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) UIDExists(ctx context.Context, uid string) (bool, error) {
	for _, r := range f.requests {
		if r.UID == uid && !r.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestRepo) FindPendingForReceiver(ctx context.Context, receiverID uint, op models.RequestOperation) ([]models.Request, error) {
	var out []models.Request
	for _, r := range f.requests {
		if r.ReceiverID == receiverID && r.Operation == op && r.Status == models.RequestStatusPending && !r.Deleted {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) MarkResolved(ctx context.Context, uid string, status models.RequestStatus) error {
	for _, r := range f.requests {
		if r.UID == uid && !r.Deleted {
			now := time.Now()
			r.Status = status
			r.Deleted = true
			r.TimeResolved = &now
			return nil
		}
	}
	return storage.ErrAlreadyResolved
}

// fakeLinkRepo records created friend links.
type fakeLinkRepo struct {
	links []*models.UserLink
}

func (f *fakeLinkRepo) Create(ctx context.Context, link *models.UserLink) error {
	f.links = append(f.links, link)
	return nil
}

func (f *fakeLinkRepo) AreLinked(ctx context.Context, userID1, userID2 uint) (bool, error) {
	for _, l := range f.links {
		if (l.UserID1 == userID1 && l.UserID2 == userID2) || (l.UserID1 == userID2 && l.UserID2 == userID1) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLinkRepo) FindLinksFor(ctx context.Context, userID uint) ([]models.UserLink, error) {
	var out []models.UserLink
	for _, l := range f.links {
		if l.Involves(userID) {
			out = append(out, *l)
		}
	}
	return out, nil
}

// fakeTeamRepo holds teams, owners and memberships.
type fakeTeamRepo struct {
	teams   []*models.Team
	members []*models.TeamLink
}

func (f *fakeTeamRepo) Create(ctx context.Context, team *models.Team) error {
	team.ID = uint(len(f.teams) + 1)
	f.teams = append(f.teams, team)
	return nil
}

func (f *fakeTeamRepo) FindByUIDAndName(ctx context.Context, uid, name string) (*models.Team, error) {
	for _, t := range f.teams {
		if t.UID == uid && t.Name == name && !t.Deleted {
			return t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTeamRepo) IsOwner(ctx context.Context, teamID, userID uint) (bool, error) {
	for _, t := range f.teams {
		if t.ID == teamID && t.OwnerID == userID && !t.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTeamRepo) IsMember(ctx context.Context, teamID, userID uint) (bool, error) {
	for _, m := range f.members {
		if m.TeamID == teamID && m.UserID == userID && !m.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTeamRepo) AddMember(ctx context.Context, link *models.TeamLink) error {
	f.members = append(f.members, link)
	return nil
}

func (f *fakeTeamRepo) FindTeamsFor(ctx context.Context, userID uint) ([]models.Team, error) {
	var out []models.Team
	for _, t := range f.teams {
		if t.OwnerID == userID {
			out = append(out, *t)
			continue
		}
		for _, m := range f.members {
			if m.TeamID == t.ID && m.UserID == userID && !m.Deleted {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

// fakeTxManager hands the same fakes to the unit of work, without real
// transaction semantics.
type fakeTxManager struct {
	repos storage.TxRepositories
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(repos storage.TxRepositories) error) error {
	return fn(f.repos)
}

type fixture struct {
	users    *fakeUserRepo
	requests *fakeRequestRepo
	links    *fakeLinkRepo
	teams    *fakeTeamRepo
	service  *requestService
}

func newFixture() *fixture {
	users := &fakeUserRepo{
		byEmail: map[string]uint{
			"sender@example.com": 1,
			"target@example.com": 2,
		},
		byID: map[uint]*models.UserBasicInfo{
			1: {ID: 1, Username: "sender", Email: "sender@example.com"},
			2: {ID: 2, Username: "target", Email: "target@example.com"},
		},
	}
	requests := &fakeRequestRepo{}
	links := &fakeLinkRepo{}
	teams := &fakeTeamRepo{}

	svc := NewRequestService(
		&fakeTxManager{repos: storage.TxRepositories{
			Requests:  requests,
			UserLinks: links,
			Teams:     teams,
		}},
		users, requests, links, teams,
		nil, config.KafkaConfig{},
	).(*requestService)

	return &fixture{users: users, requests: requests, links: links, teams: teams, service: svc}
}

func (f *fixture) addTeam(uid, name string, ownerID uint) *models.Team {
	team := &models.Team{UID: uid, Name: name, OwnerID: ownerID}
	_ = f.teams.Create(context.Background(), team)
	return team
}

func TestCreateFriendRequest(t *testing.T) {
	f := newFixture()

	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}
	if len(uid) != 254 {
		t.Fatalf("expected 254-character uid, got %d characters", len(uid))
	}
	if len(f.requests.requests) != 1 {
		t.Fatalf("expected 1 stored request, got %d", len(f.requests.requests))
	}

	stored := f.requests.requests[0]
	if stored.UID != uid {
		t.Errorf("stored uid %q does not match returned uid", stored.UID)
	}
	if stored.SenderID != 1 || stored.ReceiverID != 2 {
		t.Errorf("expected sender 1 receiver 2, got %d %d", stored.SenderID, stored.ReceiverID)
	}
	if stored.Operation != models.OperationAddFriend {
		t.Errorf("expected operation addFriend, got %q", stored.Operation)
	}
	if stored.Status != models.RequestStatusPending {
		t.Errorf("expected pending status, got %q", stored.Status)
	}
	if stored.Deleted {
		t.Error("new request must not be deleted")
	}
}

func TestCreateFriendRequestTargetNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreateFriendRequest(context.Background(), 1, "nobody@example.com")
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
	if len(f.requests.requests) != 0 {
		t.Fatalf("expected no stored request, got %d", len(f.requests.requests))
	}
}

func TestCreateFriendRequestRetriesCollidingUID(t *testing.T) {
	f := newFixture()

	taken := &models.Request{UID: "taken", SenderID: 9, ReceiverID: 1, Operation: models.OperationAddFriend, Status: models.RequestStatusPending}
	_ = f.requests.Create(context.Background(), taken)

	uids := []string{"taken", "fresh"}
	f.service.generateUID = func() (string, error) {
		uid := uids[0]
		uids = uids[1:]
		return uid, nil
	}

	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}
	if uid != "fresh" {
		t.Fatalf("expected allocator to skip the taken uid, got %q", uid)
	}
}

func TestCreateFriendRequestUIDExhaustion(t *testing.T) {
	f := newFixture()

	taken := &models.Request{UID: "taken", SenderID: 9, ReceiverID: 1, Operation: models.OperationAddFriend, Status: models.RequestStatusPending}
	_ = f.requests.Create(context.Background(), taken)

	f.service.generateUID = func() (string, error) { return "taken", nil }

	_, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if !errors.Is(err, ErrUIDExhausted) {
		t.Fatalf("expected ErrUIDExhausted, got %v", err)
	}
	if len(f.requests.requests) != 1 {
		t.Fatalf("expected no new request row, got %d rows", len(f.requests.requests))
	}
}

func TestCreateTeamInvite(t *testing.T) {
	f := newFixture()
	f.addTeam("team-uid", "Eng", 1)

	uid, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if err != nil {
		t.Fatalf("create team invite: %v", err)
	}

	stored, err := f.requests.FindByUID(context.Background(), uid)
	if err != nil {
		t.Fatalf("stored invite not found: %v", err)
	}
	if stored.Operation != models.OperationAddToTeam {
		t.Fatalf("expected operation addToTeam, got %q", stored.Operation)
	}
	payload, err := stored.TeamPayload()
	if err != nil {
		t.Fatalf("decoding stored payload: %v", err)
	}
	if payload.TeamUID != "team-uid" || payload.TeamName != "Eng" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCreateTeamInviteTeamNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "missing", "Eng")
	if !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestCreateTeamInviteAlreadyInvited(t *testing.T) {
	f := newFixture()
	f.addTeam("team-uid", "Eng", 1)

	first, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if err != nil {
		t.Fatalf("first invite: %v", err)
	}

	_, err = f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if !errors.Is(err, ErrAlreadyInvited) {
		t.Fatalf("expected ErrAlreadyInvited, got %v", err)
	}
	if len(f.requests.requests) != 1 {
		t.Fatalf("expected a single invite row, got %d", len(f.requests.requests))
	}
	if f.requests.requests[0].UID != first {
		t.Fatalf("surviving row should be the first invite")
	}
}

func TestCreateTeamInviteDifferentTeamAllowed(t *testing.T) {
	f := newFixture()
	f.addTeam("team-uid", "Eng", 1)
	f.addTeam("other-uid", "Design", 1)

	if _, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng"); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	if _, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "other-uid", "Design"); err != nil {
		t.Fatalf("invite to a different team should pass eligibility: %v", err)
	}
}

func TestCreateTeamInviteAlreadyMember(t *testing.T) {
	f := newFixture()
	team := f.addTeam("team-uid", "Eng", 1)
	_ = f.teams.AddMember(context.Background(), &models.TeamLink{TeamID: team.ID, UserID: 2})

	_, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if len(f.requests.requests) != 0 {
		t.Fatalf("expected no invite row, got %d", len(f.requests.requests))
	}
}

func TestCreateTeamInviteOwnerIsMember(t *testing.T) {
	f := newFixture()
	f.addTeam("team-uid", "Eng", 2) // target owns the team

	_, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember for the owner, got %v", err)
	}
}

func TestResolveFriendRequestDeclined(t *testing.T) {
	f := newFixture()
	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}

	if err := f.service.ResolveFriendRequest(context.Background(), uid, false); err != nil {
		t.Fatalf("decline: %v", err)
	}

	stored := f.requests.requests[0]
	if stored.Status != models.RequestStatusDeclined {
		t.Errorf("expected declined status, got %q", stored.Status)
	}
	if !stored.Deleted {
		t.Error("declined request must be soft-deleted")
	}
	if stored.TimeResolved == nil {
		t.Error("declined request must have a resolution timestamp")
	}
	if len(f.links.links) != 0 {
		t.Fatalf("decline must not create links, got %d", len(f.links.links))
	}
}

func TestResolveFriendRequestAccepted(t *testing.T) {
	f := newFixture()
	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}

	if err := f.service.ResolveFriendRequest(context.Background(), uid, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	stored := f.requests.requests[0]
	if stored.Status != models.RequestStatusAccepted {
		t.Errorf("expected accepted status, got %q", stored.Status)
	}
	if !stored.Deleted {
		t.Error("accepted request must be soft-deleted")
	}
	if stored.TimeResolved == nil {
		t.Error("accepted request must have a resolution timestamp")
	}
	if len(f.links.links) != 1 {
		t.Fatalf("expected exactly one friend link, got %d", len(f.links.links))
	}
	link := f.links.links[0]
	if link.UserID1 != 1 || link.UserID2 != 2 {
		t.Fatalf("expected link between 1 and 2, got %d and %d", link.UserID1, link.UserID2)
	}
}

func TestResolveTeamInviteAccepted(t *testing.T) {
	f := newFixture()
	team := f.addTeam("team-uid", "Eng", 1)

	uid, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if err != nil {
		t.Fatalf("create team invite: %v", err)
	}

	if err := f.service.ResolveTeamInviteRequest(context.Background(), uid, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if len(f.teams.members) != 1 {
		t.Fatalf("expected exactly one membership link, got %d", len(f.teams.members))
	}
	member := f.teams.members[0]
	if member.TeamID != team.ID {
		t.Errorf("expected membership in team %d, got %d", team.ID, member.TeamID)
	}
	if member.UserID != 2 {
		t.Errorf("expected the invited receiver (2) to be added, got %d", member.UserID)
	}
}

func TestResolveTwiceFailsSecondCall(t *testing.T) {
	f := newFixture()
	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}

	if err := f.service.ResolveFriendRequest(context.Background(), uid, true); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err = f.service.ResolveFriendRequest(context.Background(), uid, true)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on second resolve, got %v", err)
	}
	if len(f.links.links) != 1 {
		t.Fatalf("relationship must be materialized exactly once, got %d links", len(f.links.links))
	}
}

func TestResolveDeclineAfterAcceptFails(t *testing.T) {
	f := newFixture()
	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}

	if err := f.service.ResolveFriendRequest(context.Background(), uid, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	err = f.service.ResolveFriendRequest(context.Background(), uid, false)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestResolveUnknownUID(t *testing.T) {
	f := newFixture()

	err := f.service.ResolveFriendRequest(context.Background(), "does-not-exist", true)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestResolveOperationMismatch(t *testing.T) {
	f := newFixture()
	uid, err := f.service.CreateFriendRequest(context.Background(), 1, "target@example.com")
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}

	err = f.service.ResolveTeamInviteRequest(context.Background(), uid, true)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("a friend request uid must not resolve through the team invite flow, got %v", err)
	}
	if f.requests.requests[0].Resolved() {
		t.Fatal("mismatched resolve must leave the request pending")
	}
}

func TestListIncomingFriendRequests(t *testing.T) {
	f := newFixture()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		req := &models.Request{
			UID:        fmt.Sprintf("uid-%d", i),
			SenderID:   1,
			ReceiverID: 2,
			Operation:  models.OperationAddFriend,
			Status:     models.RequestStatusPending,
		}
		req.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = f.requests.Create(context.Background(), req)
	}
	// A resolved request must not appear in the listing.
	resolved := &models.Request{UID: "resolved", SenderID: 1, ReceiverID: 2, Operation: models.OperationAddFriend, Status: models.RequestStatusAccepted, Deleted: true}
	_ = f.requests.Create(context.Background(), resolved)

	incoming, err := f.service.ListIncomingFriendRequests(context.Background(), 2)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 3 {
		t.Fatalf("expected 3 incoming requests, got %d", len(incoming))
	}
	for i, item := range incoming {
		if item.UID != fmt.Sprintf("uid-%d", i) {
			t.Errorf("expected oldest-first ordering, item %d has uid %q", i, item.UID)
		}
		if item.Sender == nil || item.Sender.ID != 1 {
			t.Errorf("item %d missing sender info", i)
		}
		if item.Team != nil {
			t.Errorf("friend request listing must not carry a team payload")
		}
	}
}

func TestListIncomingTeamInvites(t *testing.T) {
	f := newFixture()
	f.addTeam("team-uid", "Eng", 1)

	uid, err := f.service.CreateTeamInviteRequest(context.Background(), 1, "target@example.com", "team-uid", "Eng")
	if err != nil {
		t.Fatalf("create team invite: %v", err)
	}

	incoming, err := f.service.ListIncomingTeamInviteRequests(context.Background(), 2)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 {
		t.Fatalf("expected 1 incoming invite, got %d", len(incoming))
	}
	item := incoming[0]
	if item.UID != uid {
		t.Errorf("expected uid %q, got %q", uid, item.UID)
	}
	if item.Team == nil || item.Team.TeamUID != "team-uid" || item.Team.TeamName != "Eng" {
		t.Errorf("expected team payload for invite listing, got %+v", item.Team)
	}
}

func TestListFriends(t *testing.T) {
	f := newFixture()
	_ = f.links.Create(context.Background(), &models.UserLink{UserID1: 1, UserID2: 2})

	friends, err := f.service.ListFriends(context.Background(), 2)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 {
		t.Fatalf("expected 1 friend, got %d", len(friends))
	}
	if friends[0].ID != 1 {
		t.Fatalf("expected counterpart user 1, got %d", friends[0].ID)
	}
}
