package types

import (
	"fmt"
	"time"
)

// Category is a class of trackable entity exposed by the e-Connect cloud.
type Category int

const (
	CategorySectors Category = iota + 1
	CategoryInputs
	CategoryOutputs
	CategoryAlerts
	CategoryPanel
)

// Categories lists every category that carries a last_id watermark.
var Categories = []Category{
	CategorySectors,
	CategoryInputs,
	CategoryOutputs,
	CategoryAlerts,
	CategoryPanel,
}

func (c Category) String() string {
	switch c {
	case CategorySectors:
		return "sectors"
	case CategoryInputs:
		return "inputs"
	case CategoryOutputs:
		return "outputs"
	case CategoryAlerts:
		return "alerts"
	case CategoryPanel:
		return "panel"
	default:
		return fmt.Sprintf("Unknown Category(%d)", int(c))
	}
}

// ParseCategory maps the lowercase name back to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Class returns the numeric element class used by the strings table and by
// commands. Alerts and panel details have no class.
func (c Category) Class() int {
	switch c {
	case CategorySectors:
		return ClassSector
	case CategoryInputs:
		return ClassInput
	case CategoryOutputs:
		return ClassOutput
	default:
		return 0
	}
}

// Element classes as used by the vendor API.
const (
	ClassAllSectors = 1
	ClassSector     = 9
	ClassInput      = 10
	ClassOutput     = 12
)

// UnknownName is used when the strings table has no entry for an index.
const UnknownName = "Unknown"

// Entity is the canonical record for a sector, input or output. Fields that
// do not apply to the entity category are left at their zero value.
type Entity struct {
	ID      int    `json:"id"`
	Index   int    `json:"index"`
	Element int    `json:"element"`
	Name    string `json:"name"`
	// Status is "armed" for sectors, "alarm" for inputs, "active" for outputs.
	Status bool `json:"status"`

	Activable bool `json:"activable,omitempty"`
	Excluded  bool `json:"excluded,omitempty"`

	DoNotRequireAuthentication bool `json:"do_not_require_authentication,omitempty"`
	ControlDeniedToUsers       bool `json:"control_denied_to_users,omitempty"`
}

// Alert is one flag of the panel status page.
type Alert struct {
	Name   string `json:"name"`
	Status int    `json:"status"`
}

// PanelInfo holds the device details returned at login.
type PanelInfo struct {
	Description             string `json:"description"`
	LastConnection          string `json:"last_connection"`
	LastDisconnection       string `json:"last_disconnection"`
	Major                   int    `json:"major"`
	Minor                   int    `json:"minor"`
	SourceIP                string `json:"source_ip"`
	ConnectionType          string `json:"connection_type"`
	DeviceClass             int    `json:"device_class"`
	Revision                int    `json:"revision"`
	Build                   int    `json:"build"`
	Brand                   int    `json:"brand"`
	Language                int    `json:"language"`
	Areas                   int    `json:"areas"`
	SectorsPerArea          int    `json:"sectors_per_area"`
	TotalSectors            int    `json:"total_sectors"`
	Inputs                  int    `json:"inputs"`
	Outputs                 int    `json:"outputs"`
	Operators               int    `json:"operators"`
	SectorsInUse            []bool `json:"sectors_in_use"`
	Model                   string `json:"model"`
	LoginWithoutUserID      bool   `json:"login_without_user_id"`
	AdditionalInfoSupported int    `json:"additional_info_supported"`
	IsFirePanel             bool   `json:"is_fire_panel"`
}

// Clone returns a deep copy so callers can't mutate session state.
func (p *PanelInfo) Clone() *PanelInfo {
	if p == nil {
		return nil
	}
	c := *p
	if p.SectorsInUse != nil {
		c.SectorsInUse = append([]bool(nil), p.SectorsInUse...)
	}
	return &c
}

// Descriptions maps an element class to index -> name.
type Descriptions map[int]map[int]string

// Name resolves a description, falling back to UnknownName.
func (d Descriptions) Name(class, index int) string {
	if names, ok := d[class]; ok {
		if name, ok := names[index]; ok {
			return name
		}
	}
	return UnknownName
}

// QueryResult is the normalized answer to a single category query. Only the
// map matching Category is populated.
type QueryResult struct {
	Category Category
	LastID   int
	Entities map[int]Entity
	Alerts   map[int]Alert
	Panel    *PanelInfo
}

// LastIDs carries the per-category watermark between queries and polls.
type LastIDs map[Category]int

// Clone copies the watermarks.
func (l LastIDs) Clone() LastIDs {
	c := make(LastIDs, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

// PollResult reports which categories changed since the given watermarks.
type PollResult struct {
	HasChanges bool
	Sectors    bool
	Inputs     bool
	Outputs    bool
	Alerts     bool
}

// Changed lists the categories flagged by the poll in a stable order.
func (p PollResult) Changed() []Category {
	var changed []Category
	if p.Sectors {
		changed = append(changed, CategorySectors)
	}
	if p.Inputs {
		changed = append(changed, CategoryInputs)
	}
	if p.Outputs {
		changed = append(changed, CategoryOutputs)
	}
	if p.Alerts {
		changed = append(changed, CategoryAlerts)
	}
	return changed
}

// AlarmState is the overall state tracked by the panel wrapper.
type AlarmState int

const (
	AlarmStateUnknown AlarmState = iota
	AlarmStateDisarmed
	AlarmStateArmedAway
)

func (a AlarmState) String() string {
	switch a {
	case AlarmStateUnknown:
		return "unknown"
	case AlarmStateDisarmed:
		return "disarmed"
	case AlarmStateArmedAway:
		return "armed_away"
	default:
		return fmt.Sprintf("Unknown AlarmState(%d)", int(a))
	}
}

// CacheData is the warm-start snapshot persisted by the bridge.
type CacheData struct {
	Panel      *PanelInfo     `json:"panel,omitempty"`
	Sectors    map[int]Entity `json:"sectors"`
	Inputs     map[int]Entity `json:"inputs"`
	Outputs    map[int]Entity `json:"outputs"`
	LastUpdate time.Time      `json:"last_update"`
}
