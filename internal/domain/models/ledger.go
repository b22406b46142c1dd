package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Power figures carry two fractional digits, demand factors four.
const (
	PowerPlaces  = 2
	FactorPlaces = 4
)

type StationStatus string

const (
	StationGreen  StationStatus = "green"
	StationYellow StationStatus = "yellow"
	StationRed    StationStatus = "red"
)

type BarType string

const (
	BarNormal     BarType = "normal"
	BarEmergency  BarType = "emergency"
	BarContinuity BarType = "continuity"
)

// Valid reports whether t is one of the known bar types.
func (t BarType) Valid() bool {
	switch t {
	case BarNormal, BarEmergency, BarContinuity:
		return true
	}
	return false
}

type LoadStatus string

const (
	StatusOperativeNormal LoadStatus = "operative_normal"
	StatusReserve         LoadStatus = "reserve_r"
	StatusReserveEquipped LoadStatus = "reserve_equipped_re"
	StatusInactive        LoadStatus = "inactive"
)

// Valid reports whether s is one of the known circuit/sub-circuit statuses.
func (s LoadStatus) Valid() bool {
	switch s {
	case StatusOperativeNormal, StatusReserve, StatusReserveEquipped, StatusInactive:
		return true
	}
	return false
}

// IsReserve reports whether s is a reserve status.
func (s LoadStatus) IsReserve() bool {
	return s == StatusReserve || s == StatusReserveEquipped
}

// ReserveStatuses lists the statuses the expiry scan looks at.
var ReserveStatuses = []LoadStatus{StatusReserve, StatusReserveEquipped}

// Station is a physical site fed by one transformer.
// MaxDemandKW, AvailablePowerKW and Status are derived by recalculation.
type Station struct {
	ID                    int64           `json:"id"`
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	OrderIndex            int             `json:"order_index"`
	TransformerCapacityKW decimal.Decimal `json:"transformer_capacity_kw"`
	MaxDemandKW           decimal.Decimal `json:"max_demand_kw"`
	AvailablePowerKW      decimal.Decimal `json:"available_power_kw"`
	Status                StationStatus   `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Bar is a busbar inside a station. Its capacity is informational only.
type Bar struct {
	ID         int64           `json:"id"`
	StationID  int64           `json:"station_id"`
	Name       string          `json:"name"`
	BarType    BarType         `json:"bar_type"`
	Status     string          `json:"status"`
	CapacityKW decimal.Decimal `json:"capacity_kw"`
	CapacityA  decimal.Decimal `json:"capacity_a"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Circuit hangs off a primary bar. A UPS circuit also references a secondary
// bar, but its load is counted against the primary bar only.
type Circuit struct {
	ID                int64           `json:"id"`
	BarID             int64           `json:"bar_id"`
	SecondaryBarID    *int64          `json:"secondary_bar_id,omitempty"`
	Denomination      string          `json:"denomination"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	LocalItem         *string         `json:"local_item,omitempty"`
	PiKW              decimal.Decimal `json:"pi_kw"`
	Fd                decimal.Decimal `json:"fd"`
	MdKW              decimal.Decimal `json:"md_kw"`
	Status            LoadStatus      `json:"status"`
	IsUPS             bool            `json:"is_ups"`
	ReserveSince      *Date           `json:"reserve_since,omitempty"`
	ReserveExpiresAt  *Date           `json:"reserve_expires_at,omitempty"`
	ClientLastContact *Date           `json:"client_last_contact,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DisplayName prefers Name and falls back to Denomination.
func (c *Circuit) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Denomination
}

// SubCircuit is a branch of a circuit with its own load and status.
type SubCircuit struct {
	ID               int64           `json:"id"`
	CircuitID        int64           `json:"circuit_id"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	ITM              *string         `json:"itm,omitempty"`
	MM2              *string         `json:"mm2,omitempty"`
	PiKW             decimal.Decimal `json:"pi_kw"`
	Fd               decimal.Decimal `json:"fd"`
	MdKW             decimal.Decimal `json:"md_kw"`
	Status           LoadStatus      `json:"status"`
	ReserveSince     *Date           `json:"reserve_since,omitempty"`
	ReserveExpiresAt *Date           `json:"reserve_expires_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DeriveMD returns pi * fd rounded to power precision.
func DeriveMD(pi, fd decimal.Decimal) decimal.Decimal {
	return pi.Mul(fd).Round(PowerPlaces)
}

// ApplyStatusTransition moves a load to next, keeping reserve_since in step:
// it is set only when leaving operative_normal for a reserve status and
// cleared on return to operative_normal.
func ApplyStatusTransition(current LoadStatus, since *Date, next LoadStatus, today Date) *Date {
	switch {
	case next.IsReserve() && current == StatusOperativeNormal:
		return DatePtr(today)
	case next == StatusOperativeNormal:
		return nil
	default:
		return since
	}
}
