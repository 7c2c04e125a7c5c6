// Package legacy holds the canonical mapping between role names and the
// numeric identifiers of the retired ERP system. The mapping is loaded once
// from an embedded, versioned asset and is read-only afterwards; every
// component that needs ERP correlation receives the same instance.
package legacy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed mapping.json
var mappingJSON []byte

// RoleMapping correlates one role name with its ERP identifier. Rank orders
// roles by privilege, 1 being the most privileged.
type RoleMapping struct {
	ERPRoleID string `json:"erpRoleId"`
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
}

// Mapping is the loaded lookup table.
type Mapping struct {
	Version int           `json:"version"`
	Roles   []RoleMapping `json:"roles"`

	byERPID map[string]RoleMapping
	byName  map[string]RoleMapping
}

var (
	loadOnce sync.Once
	loaded   *Mapping
	loadErr  error
)

// Load parses the embedded mapping on first use and returns the shared
// read-only instance.
func Load() (*Mapping, error) {
	loadOnce.Do(func() {
		var m Mapping
		if err := json.Unmarshal(mappingJSON, &m); err != nil {
			loadErr = fmt.Errorf("legacy: parse mapping: %w", err)
			return
		}
		m.byERPID = make(map[string]RoleMapping, len(m.Roles))
		m.byName = make(map[string]RoleMapping, len(m.Roles))
		for _, r := range m.Roles {
			m.byERPID[r.ERPRoleID] = r
			m.byName[r.Name] = r
		}
		loaded = &m
	})
	return loaded, loadErr
}

// ByERPID looks up a mapping by ERP role id.
func (m *Mapping) ByERPID(id string) (RoleMapping, bool) {
	r, ok := m.byERPID[id]
	return r, ok
}

// ByName looks up a mapping by role name.
func (m *Mapping) ByName(name string) (RoleMapping, bool) {
	r, ok := m.byName[name]
	return r, ok
}

// KnownERPRoleIDs returns every ERP role id in the table. The bootstrap
// seeder uses these as its already-seeded guard.
func (m *Mapping) KnownERPRoleIDs() []string {
	ids := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		ids = append(ids, r.ERPRoleID)
	}
	return ids
}

// CanEdit reports whether the given ERP role is privileged enough to edit
// (the two highest ranks).
func (m *Mapping) CanEdit(erpRoleID string) bool {
	r, ok := m.byERPID[erpRoleID]
	return ok && r.Rank <= 2
}

// CanDelete reports whether the given ERP role is the most privileged one.
func (m *Mapping) CanDelete(erpRoleID string) bool {
	r, ok := m.byERPID[erpRoleID]
	return ok && r.Rank == 1
}
