package audit

import (
	"context"
	"time"

	"deeptrack/pkg/requestcontext"
)

// EventCategory classifies audit events so sinks can route and retain them
// differently.
type EventCategory string

const (
	// CategoryCompliance covers identity checks and credential lifecycle events
	// that must be retained for regulatory reporting.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine wizard activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id,omitempty"`
	Action    string        `json:"action"`
	Subject   string        `json:"subject,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	Device    string        `json:"device,omitempty"`
}

type AuditEvent string

const (
	// Wizard events
	EventWizardStarted         AuditEvent = "wizard_started"
	EventDocumentSelected      AuditEvent = "document_selected"
	EventUploadCompleted       AuditEvent = "upload_completed"
	EventUploadFailed          AuditEvent = "upload_failed"
	EventUploadRemoved         AuditEvent = "upload_removed"
	EventVerificationSubmitted AuditEvent = "verification_submitted"
	EventVerificationSucceeded AuditEvent = "verification_succeeded"
	EventVerificationFailed    AuditEvent = "verification_failed"

	// Credential events
	EventAPIKeyCreated AuditEvent = "api_key_created"
	EventAPIKeyRevoked AuditEvent = "api_key_revoked"

	// Screening events
	EventAMLCheckPerformed AuditEvent = "aml_check_performed"

	// Organization events
	EventOrganizationCreated AuditEvent = "organization_created"
	EventUserOnboarded       AuditEvent = "user_onboarded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationSubmitted: CategoryCompliance,
	EventVerificationSucceeded: CategoryCompliance,
	EventVerificationFailed:    CategoryCompliance,
	EventAPIKeyCreated:         CategoryCompliance,
	EventAPIKeyRevoked:         CategoryCompliance,
	EventAMLCheckPerformed:     CategoryCompliance,
	EventOrganizationCreated:   CategoryCompliance,
	EventUserOnboarded:         CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event for action, enriched with the request metadata
// carried by ctx.
func NewEvent(ctx context.Context, action AuditEvent, userID string) Event {
	return Event{
		Category:  action.Category(),
		Timestamp: requestcontext.Now(ctx),
		UserID:    userID,
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	}
}
