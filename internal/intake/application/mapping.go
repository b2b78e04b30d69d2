package application

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	installations "solarops-cloud/internal/installations/domain"
)

// Mapping holds the synthesizer's lookup tables as data, so new upstream
// status or legacy-kind variants are a config edit, not a code change.
type Mapping struct {
	StatusMap     map[string]string `yaml:"status_map"`
	KindMap       map[string]string `yaml:"kind_map"`
	SizeUnitMap   map[string]string `yaml:"size_unit_map"`
	DefaultStatus string            `yaml:"default_status"`
	DefaultKind   string            `yaml:"default_kind"`
}

// DefaultMapping returns the compiled-in tables.
func DefaultMapping() Mapping {
	return Mapping{
		StatusMap: map[string]string{
			"new":         installations.StatusPending,
			"scheduled":   installations.StatusPending,
			"confirmed":   installations.StatusPending,
			"installing":  installations.StatusInProgress,
			"in_progress": installations.StatusInProgress,
			"completed":   installations.StatusCommissioned,
			"activated":   installations.StatusActive,
			"cancelled":   installations.StatusDecommissioned,
			"removed":     installations.StatusDecommissioned,
		},
		KindMap: map[string]string{
			"solar":          installations.KindSolar,
			"pv":             installations.KindSolar,
			"solar_geyser":   installations.KindSolar,
			"internet":       installations.KindInternetLink,
			"internet_link":  installations.KindInternetLink,
			"wifi":           installations.KindInternetLink,
			"custom":         installations.KindCustomFixture,
			"custom_fixture": installations.KindCustomFixture,
			"hybrid":         installations.KindHybrid,
		},
		SizeUnitMap: map[string]string{
			"kw":    installations.UnitKW,
			"kwp":   installations.UnitKW,
			"mbps":  installations.UnitMbps,
			"count": installations.UnitCount,
			"units": installations.UnitCount,
		},
		DefaultStatus: installations.StatusPending,
		DefaultKind:   installations.KindSolar,
	}
}

// LoadMapping loads tables from a yaml file, falling back to the defaults
// for anything the file leaves unset. An empty path returns the defaults.
func LoadMapping(path string) (Mapping, error) {
	mapping := DefaultMapping()
	if path == "" {
		return mapping, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mapping, err
	}
	var loaded Mapping
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return mapping, err
	}
	if len(loaded.StatusMap) > 0 {
		mapping.StatusMap = loaded.StatusMap
	}
	if len(loaded.KindMap) > 0 {
		mapping.KindMap = loaded.KindMap
	}
	if len(loaded.SizeUnitMap) > 0 {
		mapping.SizeUnitMap = loaded.SizeUnitMap
	}
	if loaded.DefaultStatus != "" {
		mapping.DefaultStatus = loaded.DefaultStatus
	}
	if loaded.DefaultKind != "" {
		mapping.DefaultKind = loaded.DefaultKind
	}
	return mapping, nil
}

// TargetStatus maps an upstream request status to a record status.
// Unmapped statuses default to pending.
func (m Mapping) TargetStatus(upstream string) string {
	if target, ok := m.StatusMap[strings.ToLower(strings.TrimSpace(upstream))]; ok {
		return target
	}
	return m.DefaultStatus
}

// NormalizeKind maps an upstream kind value to a canonical installation
// kind. Unmapped or legacy values fall back to the default kind and report
// false so the caller can preserve the original value.
func (m Mapping) NormalizeKind(upstream string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(upstream))
	if kind, ok := m.KindMap[key]; ok {
		return kind, true
	}
	return m.DefaultKind, false
}

// NormalizeSizeUnit maps an upstream unit tag to a canonical unit.
func (m Mapping) NormalizeSizeUnit(upstream string) string {
	if unit, ok := m.SizeUnitMap[strings.ToLower(strings.TrimSpace(upstream))]; ok {
		return unit
	}
	return upstream
}
