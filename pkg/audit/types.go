package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Session events
	EventTypeSessionIssued       EventType = "session.issued"
	EventTypeSessionRejected     EventType = "session.rejected"

	// Access-control events
	EventTypeACPermissionCheck   EventType = "ac.permission_check"
	EventTypeACAccessDenied      EventType = "ac.access_denied"
	EventTypeACRoleCreate        EventType = "ac.role_create"
	EventTypeACRoleUpdate        EventType = "ac.role_update"
	EventTypeACRoleDelete        EventType = "ac.role_delete"
	EventTypeACResourceCreate    EventType = "ac.resource_create"
	EventTypeACResourceUpdate    EventType = "ac.resource_update"
	EventTypeACResourceDelete    EventType = "ac.resource_delete"

	// Organization events
	EventTypeOrgCreate           EventType = "org.create"
	EventTypeOrgUpdate           EventType = "org.update"
	EventTypeOrgDelete           EventType = "org.delete"
	EventTypeOrgMemberAdd        EventType = "org.member_add"
	EventTypeOrgMemberRemove     EventType = "org.member_remove"
	EventTypeOrgMemberRoleChange EventType = "org.member_role_change"

	// Invitation events
	EventTypeInvitationCreate    EventType = "invitation.create"
	EventTypeInvitationAccept    EventType = "invitation.accept"
	EventTypeInvitationReject    EventType = "invitation.reject"
	EventTypeInvitationCancel    EventType = "invitation.cancel"
	EventTypeInvitationExpire    EventType = "invitation.expire"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event touched
type ResourceType string

const (
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeMember       ResourceType = "member"
	ResourceTypeInvitation   ResourceType = "invitation"
	ResourceTypeRole         ResourceType = "role"
	ResourceTypeACResource   ResourceType = "resource"
	ResourceTypeSession      ResourceType = "session"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID         *int64 `json:"user_id,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	// Additional details
	Message      string         `json:"message,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Changes      *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
