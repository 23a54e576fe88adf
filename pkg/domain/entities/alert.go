package entities

import "time"

// AlertType classifies an alert
type AlertType string

const (
	AlertLowStock        AlertType = "LOW_STOCK"
	AlertExpiringSoon    AlertType = "EXPIRING_SOON"
	AlertPendingApproval AlertType = "PENDING_APPROVAL"
	AlertOverdueDelivery AlertType = "OVERDUE_DELIVERY"
	AlertBudgetExceeded  AlertType = "BUDGET_EXCEEDED"
	AlertQualityIssue    AlertType = "QUALITY_ISSUE"
)

// AlertSeverity ranks alerts
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is a notification raised by the alert sweep or a workflow
type Alert struct {
	ID          string        `json:"id"`
	Type        AlertType     `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
	EntityID    string        `json:"entityId,omitempty"`
	MaterialID  string        `json:"materialId,omitempty"`
	ProjectID   string        `json:"projectId,omitempty"`
	IsRead      bool          `json:"isRead"`
	IsDismissed bool          `json:"isDismissed"`
	ActionURL   string        `json:"actionUrl,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// SystemConfig holds the tunable business settings
type SystemConfig struct {
	CompanyName                 string  `json:"companyName"`
	BaseCurrency                string  `json:"baseCurrency"`
	DateFormat                  string  `json:"dateFormat"`
	GRNTolerancePercentage      float64 `json:"grnTolerancePercentage"`
	LowStockThresholdGlobal     float64 `json:"lowStockThresholdGlobal"`
	AutoLockAfterFailedAttempts int     `json:"autoLockAccountAfterFailedAttempts"`
	SessionTimeoutMinutes       int     `json:"sessionTimeoutMinutes"`
}

// DefaultSystemConfig returns the settings used before an administrator changes them
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		CompanyName:                 "CIMS",
		BaseCurrency:                "USD",
		DateFormat:                  "2006-01-02",
		GRNTolerancePercentage:      5,
		LowStockThresholdGlobal:     0,
		AutoLockAfterFailedAttempts: 5,
		SessionTimeoutMinutes:       720,
	}
}
