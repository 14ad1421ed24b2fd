package notifications

import "time"

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotificationType categorises what raised the notification.
type NotificationType string

const (
	TypeViewer NotificationType = "viewer"
	TypeSync   NotificationType = "sync"
	TypeBuild  NotificationType = "build"
	TypeConfig NotificationType = "config"
)

// Notification is a single user-facing notice.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Severity  Severity         `json:"severity"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ViewerTag string           `json:"viewer_tag,omitempty"`
	Delivered bool             `json:"delivered"`
	CreatedAt time.Time        `json:"created_at"`
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}
