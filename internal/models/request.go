package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RequestOperation is the workflow variant a Request represents. It acts as
// the tag for the operation-specific payload in the Data column.
type RequestOperation string

const (
	OperationAddFriend RequestOperation = "addFriend"
	OperationAddToTeam RequestOperation = "addToTeam"
)

// RequestStatus is the lifecycle state of a Request. A request starts pending
// and is resolved exactly once to accepted or declined.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

// TeamInvitePayload is the typed payload carried by an addToTeam request.
// Both fields are needed to re-resolve the team at acceptance time.
type TeamInvitePayload struct {
	TeamUID  string `json:"teamUid"`
	TeamName string `json:"teamName"`
}

// Request is a persisted, uid-addressed proposal of a relationship change,
// sent by one user to another and resolved exactly once.
//
// Deleted doubles as the "closed" marker: it is flipped to true in the same
// statement that writes the terminal status, never independently, so
// Deleted == true exactly when the status is terminal. CreatedAt from the
// base model is the creation timestamp.
type Request struct {
	BaseModel
	UID          string           `gorm:"type:varchar(255);index;not null" json:"uid"`
	SenderID     uint             `gorm:"not null" json:"senderId"`
	ReceiverID   uint             `gorm:"not null;index:idx_requests_incoming" json:"receiverId"`
	Operation    RequestOperation `gorm:"type:varchar(255);not null;index:idx_requests_incoming" json:"operation"`
	Data         string           `gorm:"type:varchar(765)" json:"-"`
	Status       RequestStatus    `gorm:"type:varchar(255);not null;default:'pending'" json:"status"`
	TimeResolved *time.Time       `json:"timeResolved,omitempty"`
	Deleted      bool             `gorm:"not null;default:false" json:"-"`
}

// TableName specifies the table name for the Request model.
func (Request) TableName() string {
	return "requests"
}

// Resolved reports whether the request has reached a terminal state.
func (r *Request) Resolved() bool {
	return r.Status != RequestStatusPending
}

// TeamPayload decodes the embedded team reference of an addToTeam request.
// Calling it on any other operation is an error: payload decoding is
// dispatched by the operation tag, never guessed from the bytes.
func (r *Request) TeamPayload() (TeamInvitePayload, error) {
	if r.Operation != OperationAddToTeam {
		return TeamInvitePayload{}, fmt.Errorf("request %s has no team payload (operation %q)", r.UID, r.Operation)
	}
	var payload TeamInvitePayload
	if err := json.Unmarshal([]byte(r.Data), &payload); err != nil {
		return TeamInvitePayload{}, fmt.Errorf("decoding team payload of request %s: %w", r.UID, err)
	}
	return payload, nil
}

// SetTeamPayload encodes the team reference into the Data column and tags the
// request as addToTeam.
func (r *Request) SetTeamPayload(payload TeamInvitePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding team payload: %w", err)
	}
	r.Operation = OperationAddToTeam
	r.Data = string(raw)
	return nil
}
