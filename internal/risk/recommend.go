package risk

import (
	"fmt"
	"strings"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

// recommendationRule is one independently evaluated rule. Rules run in
// declaration order and new rules are appended, never nested.
type recommendationRule struct {
	applies func(model.RiskAssessmentResult, Evidence) bool
	text    func(model.RiskAssessmentResult, Evidence) string
}

var recommendationRules = []recommendationRule{
	{
		applies: func(r model.RiskAssessmentResult, _ Evidence) bool {
			return r.RiskLevel == model.RiskLevelHigh
		},
		text: func(model.RiskAssessmentResult, Evidence) string {
			return "Obtain additional documentation from upstream suppliers before proceeding"
		},
	},
	{
		applies: func(r model.RiskAssessmentResult, _ Evidence) bool {
			return r.RiskLevel == model.RiskLevelHigh
		},
		text: func(model.RiskAssessmentResult, Evidence) string {
			return "Schedule on-site verification of the linked production units"
		},
	},
	{
		applies: func(r model.RiskAssessmentResult, _ Evidence) bool {
			return r.RiskLevel == model.RiskLevelMedium
		},
		text: func(model.RiskAssessmentResult, Evidence) string {
			return "Request supporting evidence for the highest-scoring risk components"
		},
	},
	{
		applies: func(_ model.RiskAssessmentResult, ev Evidence) bool {
			return len(MissingDocumentTypes(ev)) > 0
		},
		text: func(_ model.RiskAssessmentResult, ev Evidence) string {
			missing := MissingDocumentTypes(ev)
			names := make([]string, 0, len(missing))
			for _, dt := range missing {
				names = append(names, string(dt))
			}
			return fmt.Sprintf("Collect missing documentation: %s", strings.Join(names, ", "))
		},
	},
	{
		applies: func(_ model.RiskAssessmentResult, ev Evidence) bool {
			for _, u := range ev.ProductionUnits {
				if !u.Verified {
					return true
				}
			}
			return false
		},
		text: func(model.RiskAssessmentResult, Evidence) string {
			return "Complete geolocation verification for all production units"
		},
	},
	{
		applies: func(_ model.RiskAssessmentResult, ev Evidence) bool {
			return len(ev.ProductionUnits) == 0
		},
		text: func(model.RiskAssessmentResult, Evidence) string {
			return "Link the batch to its production units so origin can be established"
		},
	},
}

// Recommend runs the fixed rule set against a finished assessment and
// returns the ordered recommendation texts.
func Recommend(result model.RiskAssessmentResult, ev Evidence) []string {
	var out []string
	for _, rule := range recommendationRules {
		if rule.applies(result, ev) {
			out = append(out, rule.text(result, ev))
		}
	}
	return out
}
