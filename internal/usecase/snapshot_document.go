package usecase

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

// SnapshotVersion is the only document layout Restore accepts.
const SnapshotVersion = 1

const backupFileLayout = "backup_20060102_150405.json"

// snapshotDocument is the content of a backup. encodeSnapshot writes its
// decimals as JSON numbers; decoding accepts numbers or strings.
type snapshotDocument struct {
	Version       int                       `json:"version"`
	CreatedAt     time.Time                 `json:"created_at"`
	IncludesAudit bool                      `json:"includes_audit"`
	Stations      []*models.Station         `json:"stations"`
	Bars          []*models.Bar             `json:"bars"`
	Circuits      []*models.Circuit         `json:"circuits"`
	SubCircuits   []*models.SubCircuit      `json:"sub_circuits"`
	Observations  []*models.Observation     `json:"observations"`
	Notifications []*models.Notification    `json:"notifications"`
	Requests      []*models.CapacityRequest `json:"requests"`
	AuditLogs     []*models.AuditLog        `json:"audit_logs,omitempty"`
}

// Counts returns rows per table, keyed by table name.
func (d *snapshotDocument) Counts() map[string]int {
	counts := map[string]int{
		"stations":      len(d.Stations),
		"bars":          len(d.Bars),
		"circuits":      len(d.Circuits),
		"sub_circuits":  len(d.SubCircuits),
		"observations":  len(d.Observations),
		"notifications": len(d.Notifications),
		"requests":      len(d.Requests),
	}
	if d.IncludesAudit {
		counts["audit_logs"] = len(d.AuditLogs)
	}
	return counts
}

// normalize orders every table by id, the order rows are re-inserted in.
func (d *snapshotDocument) normalize() {
	sort.Slice(d.Stations, func(i, j int) bool { return d.Stations[i].ID < d.Stations[j].ID })
	sort.Slice(d.Bars, func(i, j int) bool { return d.Bars[i].ID < d.Bars[j].ID })
	sort.Slice(d.Circuits, func(i, j int) bool { return d.Circuits[i].ID < d.Circuits[j].ID })
	sort.Slice(d.SubCircuits, func(i, j int) bool { return d.SubCircuits[i].ID < d.SubCircuits[j].ID })
	sort.Slice(d.Observations, func(i, j int) bool { return d.Observations[i].ID < d.Observations[j].ID })
	sort.Slice(d.Notifications, func(i, j int) bool { return d.Notifications[i].ID < d.Notifications[j].ID })
	sort.Slice(d.Requests, func(i, j int) bool { return d.Requests[i].ID < d.Requests[j].ID })
	sort.Slice(d.AuditLogs, func(i, j int) bool { return d.AuditLogs[i].ID < d.AuditLogs[j].ID })
}

// number writes a decimal as a JSON number with a fixed number of
// fractional digits.
type number struct {
	v      decimal.Decimal
	places int32
}

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n.v.StringFixed(n.places)), nil
}

func power(d decimal.Decimal) number  { return number{v: d, places: models.PowerPlaces} }
func factor(d decimal.Decimal) number { return number{v: d, places: models.FactorPlaces} }

// The row types shadow the decimal fields of the embedded model.

type stationRow struct {
	*models.Station
	TransformerCapacityKW number `json:"transformer_capacity_kw"`
	MaxDemandKW           number `json:"max_demand_kw"`
	AvailablePowerKW      number `json:"available_power_kw"`
}

type barRow struct {
	*models.Bar
	CapacityKW number `json:"capacity_kw"`
	CapacityA  number `json:"capacity_a"`
}

type circuitRow struct {
	*models.Circuit
	PiKW number `json:"pi_kw"`
	Fd   number `json:"fd"`
	MdKW number `json:"md_kw"`
}

type subCircuitRow struct {
	*models.SubCircuit
	PiKW number `json:"pi_kw"`
	Fd   number `json:"fd"`
	MdKW number `json:"md_kw"`
}

type requestRow struct {
	*models.CapacityRequest
	RequestedLoadKW number `json:"requested_load_kw"`
	Fd              number `json:"fd"`
}

// encodedDocument replaces the tables that carry decimals with row types.
type encodedDocument struct {
	*snapshotDocument
	Stations    []stationRow    `json:"stations"`
	Bars        []barRow        `json:"bars"`
	Circuits    []circuitRow    `json:"circuits"`
	SubCircuits []subCircuitRow `json:"sub_circuits"`
	Requests    []requestRow    `json:"requests"`
}

func newEncodedDocument(d *snapshotDocument) *encodedDocument {
	e := &encodedDocument{
		snapshotDocument: d,
		Stations:         make([]stationRow, len(d.Stations)),
		Bars:             make([]barRow, len(d.Bars)),
		Circuits:         make([]circuitRow, len(d.Circuits)),
		SubCircuits:      make([]subCircuitRow, len(d.SubCircuits)),
		Requests:         make([]requestRow, len(d.Requests)),
	}
	for i, st := range d.Stations {
		e.Stations[i] = stationRow{
			Station:               st,
			TransformerCapacityKW: power(st.TransformerCapacityKW),
			MaxDemandKW:           power(st.MaxDemandKW),
			AvailablePowerKW:      power(st.AvailablePowerKW),
		}
	}
	for i, b := range d.Bars {
		e.Bars[i] = barRow{Bar: b, CapacityKW: power(b.CapacityKW), CapacityA: power(b.CapacityA)}
	}
	for i, c := range d.Circuits {
		e.Circuits[i] = circuitRow{Circuit: c, PiKW: power(c.PiKW), Fd: factor(c.Fd), MdKW: power(c.MdKW)}
	}
	for i, sc := range d.SubCircuits {
		e.SubCircuits[i] = subCircuitRow{SubCircuit: sc, PiKW: power(sc.PiKW), Fd: factor(sc.Fd), MdKW: power(sc.MdKW)}
	}
	for i, r := range d.Requests {
		e.Requests[i] = requestRow{CapacityRequest: r, RequestedLoadKW: power(r.RequestedLoadKW), Fd: factor(r.Fd)}
	}
	return e
}

func encodeSnapshot(d *snapshotDocument) ([]byte, error) {
	d.Version = SnapshotVersion
	d.normalize()
	b, err := json.Marshal(newEncodedDocument(d))
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

// decodeSnapshot checks the version before decoding the tables.
func decodeSnapshot(b []byte) (*snapshotDocument, error) {
	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, errs.Invalid("document", "is not valid JSON: %v", err)
	}
	if head.Version == nil {
		return nil, errs.Invalid("version", "is missing")
	}
	if *head.Version != SnapshotVersion {
		return nil, errs.Invalid("version", "unsupported snapshot version %d", *head.Version)
	}
	var d snapshotDocument
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errs.Invalid("document", "cannot be decoded: %v", err)
	}
	d.normalize()
	return &d, nil
}
