package model

import "time"

// Request kinds accepted at submission.
const (
	KindText  = "Text"
	KindImage = "Image"
	KindCode  = "Code"
)

// Request statuses.  A request starts Pending; the administrator moves it
// to Completed.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// ValidKind reports whether k is one of the recognized request kinds.
func ValidKind(k string) bool {
	return k == KindText || k == KindImage || k == KindCode
}

// ValidStatus reports whether s is one of the two request statuses.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted
}

// Request is a unit of work submitted for manual fulfillment, stored in
// the `ai_requests` table.  ArtifactKey and AdminArtifactKey are storage
// keys relative to the upload root, never absolute paths.
type Request struct {
	ID                uint64     // ai_requests.id
	AccountID         uint64     // ai_requests.account_id
	Kind              string     // ai_requests.kind
	Model             string     // ai_requests.model
	Prompt            string     // ai_requests.prompt
	DeliveryEmail     string     // ai_requests.delivery_email
	ArtifactName      *string    // ai_requests.artifact_name (nullable)
	ArtifactKey       *string    // ai_requests.artifact_key (nullable)
	Status            string     // ai_requests.status
	AdminResponse     *string    // ai_requests.admin_response (nullable)
	AdminArtifactName *string    // ai_requests.admin_artifact_name (nullable)
	AdminArtifactKey  *string    // ai_requests.admin_artifact_key (nullable)
	CreatedAt         time.Time  // ai_requests.created_at
	CompletedAt       *time.Time // ai_requests.completed_at (nullable)
}

// RequestWithOwner is a Request joined with its owner's email for the
// administrator's listing.
type RequestWithOwner struct {
	Request
	OwnerEmail string
}
