package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RiskLevel string

const (
	RiskLevelNone   RiskLevel = "NONE"
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskComponent is one independently scored factor of an assessment. The
// evidence map carries the raw figures the score was derived from so a
// reviewer can audit the component without re-running it.
type RiskComponent struct {
	Name          string            `json:"name"`
	Score         float64           `json:"score"`
	Level         RiskLevel         `json:"level"`
	Justification string            `json:"justification"`
	Evidence      datatypes.JSONMap `json:"evidence"`
}

// RiskAssessmentResult is one point-in-time evaluation of a batch. Results
// are superseded by re-assessment, never mutated in place.
type RiskAssessmentResult struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	OverallScore    float64
	RiskLevel       RiskLevel
	AssessedAt      time.Time
	Components      []RiskComponent
	Recommendations []string
}

type AlertSeverity string

const (
	AlertSeverityHigh   AlertSeverity = "HIGH"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityLow    AlertSeverity = "LOW"
	AlertSeverityInfo   AlertSeverity = "INFO"
)

// DeforestationAlert is one alert reported near a production unit by the
// external alert data source.
type DeforestationAlert struct {
	ID               uuid.UUID
	ProductionUnitID uuid.UUID
	Severity         AlertSeverity
	DetectedAt       time.Time
}

type CountryRiskLevel string

const (
	CountryRiskLow      CountryRiskLevel = "LOW"
	CountryRiskStandard CountryRiskLevel = "STANDARD"
	CountryRiskHigh     CountryRiskLevel = "HIGH"
)
