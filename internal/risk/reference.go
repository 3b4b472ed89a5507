package risk

import (
	"strings"
	"sync"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

// ReferenceData holds the read-mostly country risk table and high-risk
// commodity set. Assessments snapshot the data they read, so out-of-band
// refresh never races an in-flight assessment.
type ReferenceData struct {
	mu          sync.RWMutex
	countries   map[string]model.CountryRiskLevel
	commodities map[string]struct{}
}

// Snapshot is an immutable copy handed to one assessment.
type Snapshot struct {
	countries   map[string]model.CountryRiskLevel
	commodities map[string]struct{}
}

func NewReferenceData() *ReferenceData {
	return &ReferenceData{
		countries:   defaultCountryTable(),
		commodities: defaultHighRiskCommodities(),
	}
}

func (r *ReferenceData) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	countries := make(map[string]model.CountryRiskLevel, len(r.countries))
	for k, v := range r.countries {
		countries[k] = v
	}
	commodities := make(map[string]struct{}, len(r.commodities))
	for k := range r.commodities {
		commodities[k] = struct{}{}
	}
	return Snapshot{countries: countries, commodities: commodities}
}

// SetCountryRisk updates one country's benchmarking level. In-flight
// assessments keep the snapshot they started with.
func (r *ReferenceData) SetCountryRisk(code string, level model.CountryRiskLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries[strings.ToUpper(strings.TrimSpace(code))] = level
}

// ReplaceCountryTable swaps the whole table during an out-of-band refresh.
func (r *ReferenceData) ReplaceCountryTable(table map[string]model.CountryRiskLevel) {
	next := make(map[string]model.CountryRiskLevel, len(table))
	for code, level := range table {
		next[strings.ToUpper(strings.TrimSpace(code))] = level
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries = next
}

func (s Snapshot) CountryRisk(code string) (model.CountryRiskLevel, bool) {
	level, ok := s.countries[strings.ToUpper(strings.TrimSpace(code))]
	return level, ok
}

func (s Snapshot) IsHighRiskCommodity(name string) bool {
	_, ok := s.commodities[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Seed table from the commission's country benchmarking; refreshed out of
// band when the benchmarking is republished.
func defaultCountryTable() map[string]model.CountryRiskLevel {
	return map[string]model.CountryRiskLevel{
		"BR": model.CountryRiskHigh,
		"ID": model.CountryRiskHigh,
		"MY": model.CountryRiskHigh,
		"MM": model.CountryRiskHigh,
		"CI": model.CountryRiskStandard,
		"GH": model.CountryRiskStandard,
		"CM": model.CountryRiskStandard,
		"CO": model.CountryRiskStandard,
		"VN": model.CountryRiskStandard,
		"KE": model.CountryRiskStandard,
		"EC": model.CountryRiskStandard,
		"ET": model.CountryRiskStandard,
		"DE": model.CountryRiskLow,
		"FR": model.CountryRiskLow,
		"NL": model.CountryRiskLow,
	}
}

func defaultHighRiskCommodities() map[string]struct{} {
	names := []string{
		"cattle",
		"palm oil",
		"soy",
		"soya",
		"coffee",
		"cocoa",
		"rubber",
		"timber",
		"wood",
		"maize",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
