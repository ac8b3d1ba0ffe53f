package audit

import (
	"time"

	"github.com/google/uuid"
)

// Decision outcomes recorded on query events.
const (
	DecisionRecognized    = "recognized"
	DecisionNotRecognized = "not_recognized"
	DecisionAuthorized    = "authorized"
	DecisionDenied        = "denied"
)

// Event types.
const (
	TypeRecognitionQuery   = "recognition_query"
	TypeAuthorizationQuery = "authorization_query"
	TypeEntityRegistered   = "entity_registered"
	TypeEntityUpdated      = "entity_updated"
	TypeEntityRemoved      = "entity_removed"
	TypeStatementIssued    = "statement_issued"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          uuid.UUID
	Type        string
	EntityID    string
	AuthorityID string
	AssertionID string
	Decision    string
	ClientIP    string
	RequestID   string
	Timestamp   time.Time
}
