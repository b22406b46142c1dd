package models

import "github.com/shopspring/decimal"

// Requests for the ledger HTTP endpoints. Power figures arrive as JSON
// numbers or strings. The use cases repeat the range checks for callers
// that bypass HTTP.

type UpdateCapacityRequest struct {
	TransformerCapacityKW decimal.Decimal `json:"transformer_capacity_kw" validate:"gte=0"`
}

type HistoryRequest struct {
	From  string `query:"from"`
	To    string `query:"to"`
	Limit int    `query:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type CapacityCheckRequest struct {
	BarID      int64           `json:"bar_id" validate:"required,gt=0"`
	ProposedMD decimal.Decimal `json:"proposed_md_kw" validate:"gte=0"`
}

type CreateCircuitRequest struct {
	SecondaryBarID    *int64           `json:"secondary_bar_id" validate:"omitempty,gt=0"`
	Denomination      string           `json:"denomination" validate:"required,max=100"`
	Name              string           `json:"name" validate:"max=200"`
	Description       *string          `json:"description"`
	LocalItem         *string          `json:"local_item"`
	PiKW              decimal.Decimal  `json:"pi_kw" validate:"gte=0"`
	Fd                decimal.Decimal  `json:"fd" validate:"gt=0,lte=1"`
	MdKW              *decimal.Decimal `json:"md_kw" validate:"omitempty,gte=0"`
	Status            LoadStatus       `json:"status" default:"operative_normal" validate:"oneof=operative_normal reserve_r reserve_equipped_re inactive"`
	IsUPS             bool             `json:"is_ups"`
	ReserveExpiresAt  *Date            `json:"reserve_expires_at"`
	ClientLastContact *Date            `json:"client_last_contact"`
}

type UpdateCircuitRequest struct {
	Denomination       *string          `json:"denomination" validate:"omitempty,max=100"`
	Name               *string          `json:"name" validate:"omitempty,max=200"`
	Description        *string          `json:"description"`
	LocalItem          *string          `json:"local_item"`
	PiKW               *decimal.Decimal `json:"pi_kw" validate:"omitempty,gte=0"`
	Fd                 *decimal.Decimal `json:"fd" validate:"omitempty,gt=0,lte=1"`
	MdKW               *decimal.Decimal `json:"md_kw" validate:"omitempty,gte=0"`
	ReserveExpiresAt   *Date            `json:"reserve_expires_at"`
	ClearReserveExpiry bool             `json:"clear_reserve_expiry"`
	ClientLastContact  *Date            `json:"client_last_contact"`
}

type ChangeStatusRequest struct {
	Status LoadStatus `json:"status" validate:"required,oneof=operative_normal reserve_r reserve_equipped_re inactive"`
}

type CreateSubCircuitRequest struct {
	Name             string           `json:"name" validate:"required,max=200"`
	Description      *string          `json:"description"`
	ITM              *string          `json:"itm"`
	MM2              *string          `json:"mm2"`
	PiKW             decimal.Decimal  `json:"pi_kw" validate:"gte=0"`
	Fd               decimal.Decimal  `json:"fd" validate:"gt=0,lte=1"`
	MdKW             *decimal.Decimal `json:"md_kw" validate:"omitempty,gte=0"`
	Status           LoadStatus       `json:"status" default:"operative_normal" validate:"oneof=operative_normal reserve_r reserve_equipped_re inactive"`
	ReserveExpiresAt *Date            `json:"reserve_expires_at"`
}

type UpdateSubCircuitRequest struct {
	Name               *string          `json:"name" validate:"omitempty,max=200"`
	Description        *string          `json:"description"`
	ITM                *string          `json:"itm"`
	MM2                *string          `json:"mm2"`
	PiKW               *decimal.Decimal `json:"pi_kw" validate:"omitempty,gte=0"`
	Fd                 *decimal.Decimal `json:"fd" validate:"omitempty,gt=0,lte=1"`
	MdKW               *decimal.Decimal `json:"md_kw" validate:"omitempty,gte=0"`
	ReserveExpiresAt   *Date            `json:"reserve_expires_at"`
	ClearReserveExpiry bool             `json:"clear_reserve_expiry"`
}

type CreateRequestRequest struct {
	StationID             int64           `json:"station_id" validate:"required,gt=0"`
	BarType               BarType         `json:"bar_type" validate:"required,oneof=normal emergency continuity"`
	CircuitID             *int64          `json:"circuit_id" validate:"omitempty,gt=0"`
	LocalItem             *string         `json:"local_item"`
	RequestedLoadKW       decimal.Decimal `json:"requested_load_kw" validate:"gt=0"`
	Fd                    decimal.Decimal `json:"fd" validate:"gt=0,lte=1"`
	SubCircuitName        *string         `json:"sub_circuit_name"`
	SubCircuitDescription *string         `json:"sub_circuit_description"`
	SubCircuitITM         *string         `json:"sub_circuit_itm"`
	SubCircuitMM2         *string         `json:"sub_circuit_mm2"`
	Justification         *string         `json:"justification"`
}

type ListRequestsRequest struct {
	StationID int64  `query:"station_id" validate:"gte=0"`
	Status    string `query:"status" validate:"omitempty,oneof=pending approved rejected"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type RejectRequestRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type CreateObservationRequest struct {
	CircuitID    *int64              `json:"circuit_id" validate:"omitempty,gt=0"`
	SubCircuitID *int64              `json:"sub_circuit_id" validate:"omitempty,gt=0"`
	BarID        *int64              `json:"bar_id" validate:"omitempty,gt=0"`
	Severity     ObservationSeverity `json:"severity" validate:"required,oneof=urgent warning recommendation"`
	Content      string              `json:"content" validate:"required,max=5000"`
}

type ListObservationsRequest struct {
	CircuitID    int64 `query:"circuit_id" validate:"gte=0"`
	SubCircuitID int64 `query:"sub_circuit_id" validate:"gte=0"`
	BarID        int64 `query:"bar_id" validate:"gte=0"`
	Limit        int   `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ListNotificationsRequest struct {
	IsRead string `query:"is_read" validate:"omitempty,oneof=true false 1 0"`
	Type   string `query:"type" validate:"omitempty,oneof=reserve_no_contact negative_energy request_pending system"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ExtendNotificationRequest struct {
	ExtendedUntil Date `json:"extended_until"`
}

type CreateBackupRequest struct {
	IncludeAudit bool    `json:"include_audit"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
}

type ListBackupsRequest struct {
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}
