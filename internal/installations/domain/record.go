package installations

import "time"

const (
	KindSolar         = "solar"
	KindInternetLink  = "internet_link"
	KindCustomFixture = "custom_fixture"
	KindHybrid        = "hybrid"
)

const (
	UnitKW    = "kW"
	UnitMbps  = "Mbps"
	UnitCount = "count"
)

const (
	StatusPending        = "pending"
	StatusInProgress     = "in_progress"
	StatusCommissioned   = "commissioned"
	StatusActive         = "active"
	StatusDecommissioned = "decommissioned"
)

// transitions lists the legal forward moves per state. Decommissioned is
// terminal; it is reachable from every other state and appears in each set.
var transitions = map[string][]string{
	StatusPending:        {StatusInProgress, StatusCommissioned, StatusDecommissioned},
	StatusInProgress:     {StatusCommissioned, StatusActive, StatusDecommissioned},
	StatusCommissioned:   {StatusActive, StatusDecommissioned},
	StatusActive:         {StatusDecommissioned},
	StatusDecommissioned: {},
}

var shortCodePrefixes = map[string]string{
	KindSolar:         "SOL",
	KindInternetLink:  "LNK",
	KindCustomFixture: "FIX",
	KindHybrid:        "HYB",
}

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InstallationRecord is the durable entity for one physical installation.
// At most one record exists per upstream intake request.
type InstallationRecord struct {
	ID                string       `json:"id"`
	ShortCode         string       `json:"short_code"`
	TenantID          string       `json:"tenant_id"`
	RequestID         string       `json:"request_id"`
	CustomerID        string       `json:"customer_id"`
	OrderID           string       `json:"order_id"`
	Kind              string       `json:"kind"`
	SizeMagnitude     float64      `json:"size_magnitude"`
	SizeUnit          string       `json:"size_unit"`
	Classification    string       `json:"classification"`
	Status            string       `json:"status"`
	InstallationDate  *time.Time   `json:"installation_date,omitempty"`
	CommissioningDate *time.Time   `json:"commissioning_date,omitempty"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
	Address           string       `json:"address"`
	MonitoringID      string       `json:"monitoring_id"`
	Technicians       []string     `json:"technicians"`
	Components        []string     `json:"components"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// ValidStatus reports whether a status names a lifecycle state.
func ValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another. Same-state moves are not transitions; callers treat them as no-ops.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BuildShortCode derives the human-readable reference code from kind and id.
func BuildShortCode(kind, id string) string {
	prefix, ok := shortCodePrefixes[kind]
	if !ok {
		prefix = "INS"
	}
	short := id
	if len(short) > 8 {
		short = short[len(short)-8:]
	}
	return prefix + "-" + short
}

// TransitionTo moves the record to the target state. The commissioning gate
// is a precondition enforced by the caller before this mutation; the record
// itself only knows the shape of the state machine.
func (r *InstallationRecord) TransitionTo(target string, now time.Time) error {
	if r == nil {
		return ErrNilRecord
	}
	if !ValidStatus(target) {
		return ErrUnknownStatus
	}
	if r.Status == target {
		return nil
	}
	if !CanTransition(r.Status, target) {
		return ErrIllegalTransition
	}
	r.Status = target
	r.UpdatedAt = now
	if target == StatusCommissioned && r.CommissioningDate == nil {
		at := now
		r.CommissioningDate = &at
	}
	return nil
}

// AssignTechnician adds a technician to the record, deduplicated.
func (r *InstallationRecord) AssignTechnician(technicianID string) bool {
	if r == nil || technicianID == "" {
		return false
	}
	for _, existing := range r.Technicians {
		if existing == technicianID {
			return false
		}
	}
	r.Technicians = append(r.Technicians, technicianID)
	return true
}

// AttachComponent links an installed physical component, deduplicated.
func (r *InstallationRecord) AttachComponent(componentID string) bool {
	if r == nil || componentID == "" {
		return false
	}
	for _, existing := range r.Components {
		if existing == componentID {
			return false
		}
	}
	r.Components = append(r.Components, componentID)
	return true
}

// Clone returns a detached copy.
func (r *InstallationRecord) Clone() *InstallationRecord {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Technicians = append([]string(nil), r.Technicians...)
	copied.Components = append([]string(nil), r.Components...)
	if r.InstallationDate != nil {
		at := *r.InstallationDate
		copied.InstallationDate = &at
	}
	if r.CommissioningDate != nil {
		at := *r.CommissioningDate
		copied.CommissioningDate = &at
	}
	if r.Coordinates != nil {
		coords := *r.Coordinates
		copied.Coordinates = &coords
	}
	return &copied
}
