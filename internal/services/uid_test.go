package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"harmony-go/internal/models"
)

func newPendingFriendRequest(uid string) *models.Request {
	return &models.Request{
		UID:        uid,
		SenderID:   1,
		ReceiverID: 2,
		Operation:  models.OperationAddFriend,
		Status:     models.RequestStatusPending,
	}
}

func TestGenerateUID(t *testing.T) {
	uid, err := GenerateUID()
	if err != nil {
		t.Fatalf("generate uid: %v", err)
	}
	if len(uid) != uidLength {
		t.Fatalf("expected %d characters, got %d", uidLength, len(uid))
	}
	for i, c := range uid {
		if !strings.ContainsRune(uidAlphabet, c) {
			t.Fatalf("character %q at position %d is outside the base36 alphabet", c, i)
		}
	}

	other, err := GenerateUID()
	if err != nil {
		t.Fatalf("generate uid: %v", err)
	}
	if uid == other {
		t.Fatal("two generated uids must not collide")
	}
}

func TestAllocateRequestUIDBoundedRetries(t *testing.T) {
	repo := &fakeRequestRepo{}
	calls := 0
	generate := func() (string, error) {
		calls++
		return "constant", nil
	}

	uid, err := allocateRequestUID(context.Background(), repo, generate)
	if err != nil {
		t.Fatalf("allocate against empty store: %v", err)
	}
	if uid != "constant" {
		t.Fatalf("expected the generated uid, got %q", uid)
	}
	if calls != 1 {
		t.Fatalf("expected a single generator call, got %d", calls)
	}

	taken := &fakeRequestRepo{}
	_ = taken.Create(context.Background(), newPendingFriendRequest("constant"))
	calls = 0
	_, err = allocateRequestUID(context.Background(), taken, generate)
	if !errors.Is(err, ErrUIDExhausted) {
		t.Fatalf("expected ErrUIDExhausted, got %v", err)
	}
	if calls != maxUIDAttempts {
		t.Fatalf("expected %d generator calls, got %d", maxUIDAttempts, calls)
	}
}

func TestAllocateRequestUIDReusesResolvedUID(t *testing.T) {
	repo := &fakeRequestRepo{}
	resolved := newPendingFriendRequest("recycled")
	_ = repo.Create(context.Background(), resolved)
	if err := repo.MarkResolved(context.Background(), "recycled", models.RequestStatusAccepted); err != nil {
		t.Fatalf("resolving fixture request: %v", err)
	}

	uid, err := allocateRequestUID(context.Background(), repo, func() (string, error) { return "recycled", nil })
	if err != nil {
		t.Fatalf("allocating over a resolved uid: %v", err)
	}
	if uid != "recycled" {
		t.Fatalf("expected the resolved uid to be reusable, got %q", uid)
	}
}

func TestAllocateRequestUIDGeneratorError(t *testing.T) {
	repo := &fakeRequestRepo{}
	boom := errors.New("entropy failure")

	_, err := allocateRequestUID(context.Background(), repo, func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected the generator error, got %v", err)
	}
}
