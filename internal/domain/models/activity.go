package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationReserveExpired NotificationType = "reserve_no_contact"
	NotificationNegativeEnergy NotificationType = "negative_energy"
	NotificationRequestPending NotificationType = "request_pending"
	NotificationSystem         NotificationType = "system"
)

// Notification is an operator-facing alert. The expiry scheduler creates
// reserve_no_contact notifications; operators read, extend or dismiss them.
type Notification struct {
	ID            int64            `json:"id"`
	StationID     *int64           `json:"station_id,omitempty"`
	CircuitID     *int64           `json:"circuit_id,omitempty"`
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	IsRead        bool             `json:"is_read"`
	IsDismissed   bool             `json:"is_dismissed"`
	ExtendedUntil *Date            `json:"extended_until,omitempty"`
	AutoDeleteAt  *Date            `json:"auto_delete_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ActiveOn reports whether the notification still suppresses a new alert on
// today: not dismissed and either never extended or extended to today or later.
func (n *Notification) ActiveOn(today Date) bool {
	if n.IsDismissed {
		return false
	}
	return n.ExtendedUntil == nil || !n.ExtendedUntil.Before(today)
}

type ObservationSeverity string

const (
	SeverityUrgent         ObservationSeverity = "urgent"
	SeverityWarning        ObservationSeverity = "warning"
	SeverityRecommendation ObservationSeverity = "recommendation"
)

// Observation is a free-text field note attached to a bar, circuit or sub-circuit.
type Observation struct {
	ID           int64               `json:"id"`
	CircuitID    *int64              `json:"circuit_id,omitempty"`
	SubCircuitID *int64              `json:"sub_circuit_id,omitempty"`
	BarID        *int64              `json:"bar_id,omitempty"`
	UserID       int64               `json:"user_id"`
	Severity     ObservationSeverity `json:"severity"`
	Content      string              `json:"content"`
	CreatedAt    time.Time           `json:"created_at"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// CapacityRequest asks for additional load on a station. Approval turns it
// into a new circuit, or a sub-circuit when CircuitID is set.
type CapacityRequest struct {
	ID                    int64           `json:"id"`
	RequesterID           int64           `json:"requester_id"`
	StationID             int64           `json:"station_id"`
	BarType               BarType         `json:"bar_type"`
	CircuitID             *int64          `json:"circuit_id,omitempty"`
	LocalItem             *string         `json:"local_item,omitempty"`
	RequestedLoadKW       decimal.Decimal `json:"requested_load_kw"`
	Fd                    decimal.Decimal `json:"fd"`
	SubCircuitName        *string         `json:"sub_circuit_name,omitempty"`
	SubCircuitDescription *string         `json:"sub_circuit_description,omitempty"`
	SubCircuitITM         *string         `json:"sub_circuit_itm,omitempty"`
	SubCircuitMM2         *string         `json:"sub_circuit_mm2,omitempty"`
	Justification         *string         `json:"justification,omitempty"`
	Status                RequestStatus   `json:"status"`
	RejectionReason       *string         `json:"rejection_reason,omitempty"`
	ReviewedBy            *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// AuditLog is one persisted audit trail row.
type AuditLog struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	UserRole   string          `json:"user_role"`
	UserName   string          `json:"user_name"`
	ActionDate time.Time       `json:"action_date"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	IsFlagged  bool            `json:"is_flagged"`
	FlagReason *string         `json:"flag_reason,omitempty"`
}

// Backup is a persisted snapshot of the whole ledger.
type Backup struct {
	ID            int64     `json:"id"`
	CreatedBy     int64     `json:"created_by"`
	FileName      string    `json:"file_name"`
	Description   *string   `json:"description,omitempty"`
	Document      []byte    `json:"-"`
	IncludesAudit bool      `json:"includes_audit"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// Actor identifies who performed a mutation. It is supplied by the
// authentication layer in front of this service.
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SystemActor is used for work the service does on its own behalf.
var SystemActor = Actor{ID: 0, Name: "system", Role: "system"}

// CapacitySample is one recalculated station aggregate, kept as history.
type CapacitySample struct {
	StationID             int64           `json:"station_id"`
	At                    time.Time       `json:"at"`
	TransformerCapacityKW decimal.Decimal `json:"transformer_capacity_kw"`
	MaxDemandKW           decimal.Decimal `json:"max_demand_kw"`
	AvailablePowerKW      decimal.Decimal `json:"available_power_kw"`
	Status                StationStatus   `json:"status"`
}
