package risk

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

// Component weights. The weighted formula is audited by regulators; any
// change must be version-tagged, not made silently.
const (
	weightCountry       = 0.25
	weightDeforestation = 0.30
	weightSupplier      = 0.15
	weightCommodity     = 0.10
	weightDocumentation = 0.10
	weightGeospatial    = 0.10
)

// Policy constants. These are conservative defaults a compliance owner may
// want to tune, not invariants of the algorithm.
const (
	unknownCountryScore       = 0.7
	noUnitsDeforestationScore = 0.8
	noUnitsGeospatialScore    = 0.9
	defaultSupplierScore      = 0.5
	alertSourceDownScore      = 0.9
)

// AlertWindow is how far back deforestation alerts count against a batch.
const AlertWindow = 365 * 24 * time.Hour

// Evidence is the snapshot of stored facts one assessment scores against.
// Collection happens in the service layer; scoring in this package is pure.
type Evidence struct {
	BatchID         uuid.UUID
	SupplierID      uuid.UUID
	CountryCode     string
	CommodityType   string
	ProductionUnits []model.ProductionUnit
	Alerts          []model.DeforestationAlert
	// AlertSourceErr is set when the alert source was unreachable; the
	// deforestation component then degrades to its most conservative score
	// instead of aborting the assessment.
	AlertSourceErr error
	DocumentTypes  []model.DocumentType
}

// ComponentFunc scores one independent factor in [0,1], higher = riskier.
type ComponentFunc func(Evidence, Snapshot) model.RiskComponent

type scorer struct {
	weight float64
	score  ComponentFunc
}

// Engine evaluates the six-factor weighted risk formula. The supplier
// component is an extensibility point and can be overridden without
// touching the aggregation.
type Engine struct {
	ref     *ReferenceData
	scorers []scorer
}

func NewEngine(ref *ReferenceData) *Engine {
	e := &Engine{ref: ref}
	e.scorers = []scorer{
		{weightCountry, scoreCountry},
		{weightDeforestation, scoreDeforestation},
		{weightSupplier, scoreSupplier},
		{weightCommodity, scoreCommodity},
		{weightDocumentation, scoreDocumentation},
		{weightGeospatial, scoreGeospatial},
	}
	return e
}

// OverrideSupplierScorer swaps in a supplier-history scorer. The weight and
// position in the formula stay fixed.
func (e *Engine) OverrideSupplierScorer(fn ComponentFunc) {
	for i := range e.scorers {
		if e.scorers[i].weight == weightSupplier {
			e.scorers[i].score = fn
			return
		}
	}
}

// Assess computes all components against one reference snapshot and
// aggregates them into a classified result.
func (e *Engine) Assess(ev Evidence, now time.Time) model.RiskAssessmentResult {
	snap := e.ref.Snapshot()

	components := make([]model.RiskComponent, 0, len(e.scorers))
	overall := 0.0
	for _, s := range e.scorers {
		c := s.score(ev, snap)
		c.Level = Classify(c.Score)
		components = append(components, c)
		overall += s.weight * c.Score
	}

	result := model.RiskAssessmentResult{
		ID:           uuid.New(),
		BatchID:      ev.BatchID,
		OverallScore: overall,
		RiskLevel:    Classify(overall),
		AssessedAt:   now,
		Components:   components,
	}
	result.Recommendations = Recommend(result, ev)
	return result
}

// Classify maps a score to a level: >=0.8 HIGH, >=0.5 MEDIUM, >0.2 LOW,
// otherwise NONE. Boundaries are closed exactly as listed.
func Classify(score float64) model.RiskLevel {
	switch {
	case score >= 0.8:
		return model.RiskLevelHigh
	case score >= 0.5:
		return model.RiskLevelMedium
	case score > 0.2:
		return model.RiskLevelLow
	default:
		return model.RiskLevelNone
	}
}

func scoreCountry(ev Evidence, snap Snapshot) model.RiskComponent {
	level, known := snap.CountryRisk(ev.CountryCode)
	c := model.RiskComponent{
		Name: "country",
		Evidence: datatypes.JSONMap{
			"country_code": ev.CountryCode,
		},
	}
	if !known {
		c.Score = unknownCountryScore
		c.Justification = fmt.Sprintf("country %q is not in the benchmarking table; unknown, needs manual review", ev.CountryCode)
		return c
	}
	c.Evidence["benchmark_level"] = string(level)
	switch level {
	case model.CountryRiskLow:
		c.Score = 0.2
	case model.CountryRiskStandard:
		c.Score = 0.5
	case model.CountryRiskHigh:
		c.Score = 0.9
	default:
		c.Score = unknownCountryScore
	}
	c.Justification = fmt.Sprintf("country %s is benchmarked %s", ev.CountryCode, level)
	return c
}

func scoreDeforestation(ev Evidence, _ Snapshot) model.RiskComponent {
	c := model.RiskComponent{Name: "deforestation", Evidence: datatypes.JSONMap{}}

	if ev.AlertSourceErr != nil {
		c.Score = alertSourceDownScore
		c.Justification = fmt.Sprintf("alert source unavailable (%v); scored conservatively pending data", ev.AlertSourceErr)
		c.Evidence["alert_source_error"] = ev.AlertSourceErr.Error()
		return c
	}
	if len(ev.ProductionUnits) == 0 {
		c.Score = noUnitsDeforestationScore
		c.Justification = "batch has no linked production units; deforestation status cannot be proven"
		c.Evidence["production_units"] = 0
		return c
	}

	var high, medium int
	for _, a := range ev.Alerts {
		switch a.Severity {
		case model.AlertSeverityHigh:
			high++
		case model.AlertSeverityMedium:
			medium++
		}
	}
	c.Evidence["alert_count"] = len(ev.Alerts)
	c.Evidence["high_alerts"] = high
	c.Evidence["medium_alerts"] = medium

	switch {
	case high > 0:
		c.Score = 0.9
		c.Justification = fmt.Sprintf("%d high-severity alert(s) within the cutoff window", high)
	case medium > 2:
		c.Score = 0.7
		c.Justification = fmt.Sprintf("%d medium-severity alerts within the cutoff window", medium)
	case medium >= 1:
		c.Score = 0.5
		c.Justification = fmt.Sprintf("%d medium-severity alert(s) within the cutoff window", medium)
	case len(ev.Alerts) > 0:
		c.Score = 0.3
		c.Justification = fmt.Sprintf("%d low-severity alert(s) within the cutoff window", len(ev.Alerts))
	default:
		c.Score = 0.1
		c.Justification = "no alerts near linked production units within the cutoff window"
	}
	return c
}

func scoreSupplier(ev Evidence, _ Snapshot) model.RiskComponent {
	return model.RiskComponent{
		Name:          "supplier",
		Score:         defaultSupplierScore,
		Justification: "supplier history scoring not yet available; fixed baseline applied",
		Evidence: datatypes.JSONMap{
			"supplier_id": ev.SupplierID.String(),
		},
	}
}

func scoreCommodity(ev Evidence, snap Snapshot) model.RiskComponent {
	c := model.RiskComponent{
		Name: "commodity",
		Evidence: datatypes.JSONMap{
			"commodity": ev.CommodityType,
		},
	}
	if snap.IsHighRiskCommodity(ev.CommodityType) {
		c.Score = 0.7
		c.Justification = fmt.Sprintf("%s is a regulated high-risk commodity", strings.ToLower(ev.CommodityType))
		return c
	}
	c.Score = 0.3
	c.Justification = fmt.Sprintf("%s is not in the high-risk commodity set", strings.ToLower(ev.CommodityType))
	return c
}

func scoreDocumentation(ev Evidence, _ Snapshot) model.RiskComponent {
	required := model.RequiredDocumentTypes
	present := make(map[model.DocumentType]struct{}, len(ev.DocumentTypes))
	for _, dt := range ev.DocumentTypes {
		present[dt] = struct{}{}
	}
	var have int
	var missing []string
	for _, dt := range required {
		if _, ok := present[dt]; ok {
			have++
		} else {
			missing = append(missing, string(dt))
		}
	}
	sort.Strings(missing)

	score := 1.0 - float64(have)/float64(len(required))
	c := model.RiskComponent{
		Name:  "documentation",
		Score: score,
		Evidence: datatypes.JSONMap{
			"required": len(required),
			"present":  have,
		},
	}
	if len(missing) > 0 {
		c.Evidence["missing"] = strings.Join(missing, ", ")
		c.Justification = fmt.Sprintf("%d of %d required document types present; missing: %s", have, len(required), strings.Join(missing, ", "))
	} else {
		c.Justification = "all required document types present"
	}
	return c
}

func scoreGeospatial(ev Evidence, _ Snapshot) model.RiskComponent {
	c := model.RiskComponent{Name: "geospatial", Evidence: datatypes.JSONMap{}}
	total := len(ev.ProductionUnits)
	if total == 0 {
		c.Score = noUnitsGeospatialScore
		c.Justification = "batch has no linked production units; geolocation cannot be verified"
		c.Evidence["production_units"] = 0
		return c
	}
	verified := 0
	for _, u := range ev.ProductionUnits {
		if u.Verified {
			verified++
		}
	}
	c.Score = 1.0 - float64(verified)/float64(total)
	c.Evidence["production_units"] = total
	c.Evidence["verified_units"] = verified
	c.Justification = fmt.Sprintf("%d of %d production units geolocation-verified", verified, total)
	return c
}

// MissingDocumentTypes lists the required types the evidence lacks, in the
// canonical required order.
func MissingDocumentTypes(ev Evidence) []model.DocumentType {
	present := make(map[model.DocumentType]struct{}, len(ev.DocumentTypes))
	for _, dt := range ev.DocumentTypes {
		present[dt] = struct{}{}
	}
	var missing []model.DocumentType
	for _, dt := range model.RequiredDocumentTypes {
		if _, ok := present[dt]; !ok {
			missing = append(missing, dt)
		}
	}
	return missing
}
