package types

import "time"

// Severity ranks how far a reading crossed its configured bounds.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityDanger   Severity = "danger"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityDanger, SeverityCritical:
		return true
	}
	return false
}

// Location is the place a reading was taken.
type Location struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Alert records a threshold violation and its acknowledge/resolve lifecycle.
type Alert struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	Location       Location   `json:"location"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Active reports whether the alert still counts for deduplication:
// not acknowledged, not resolved, and newer than the given window.
func (a Alert) Active(now time.Time, window time.Duration) bool {
	return !a.Acknowledged && !a.Resolved && now.Sub(a.CreatedAt) < window
}

// AlertStats summarizes alert activity over a query window.
type AlertStats struct {
	Total          int            `json:"total"`
	Unacknowledged int            `json:"unacknowledged"`
	BySeverity     map[string]int `json:"bySeverity"`
	ByType         map[string]int `json:"byType"`
	Period         string         `json:"period"`
}
