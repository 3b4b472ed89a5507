package model

type StageID string

const (
	StageProductionRegistration  StageID = "PRODUCTION_REGISTRATION"
	StageGeolocationVerification StageID = "GEOLOCATION_VERIFICATION"
	StageDeforestationCheck      StageID = "DEFORESTATION_CHECK"
	StageCollectionAggregation   StageID = "COLLECTION_AGGREGATION"
	StageProcessing              StageID = "PROCESSING"
	StageRiskAssessment          StageID = "RISK_ASSESSMENT"
	StageDueDiligenceStatement   StageID = "DUE_DILIGENCE_STATEMENT"
	StageExportShipment          StageID = "EXPORT_SHIPMENT"
	StageCustomsClearance        StageID = "CUSTOMS_CLEARANCE"
	StageDeliveryComplete        StageID = "DELIVERY_COMPLETE"
)

type StageStatus string

const (
	StageStatusNotStarted    StageStatus = "NOT_STARTED"
	StageStatusInProgress    StageStatus = "IN_PROGRESS"
	StageStatusPendingReview StageStatus = "PENDING_REVIEW"
	StageStatusBlocked       StageStatus = "BLOCKED"
	StageStatusCompleted     StageStatus = "COMPLETED"
	StageStatusSkipped       StageStatus = "SKIPPED"
)

// StageDefinition is the immutable, globally shared metadata for one
// compliance stage. Ordering lives in the sequence table below; transitions
// are derived from position, not stored per stage.
type StageDefinition struct {
	ID               StageID
	Name             string
	Description      string
	RequiredActions  []string
	AutomatedActions []string
}

var stageSequence = []StageDefinition{
	{
		ID:          StageProductionRegistration,
		Name:        "Production Registration",
		Description: "Register the batch and its contributing production units.",
		RequiredActions: []string{
			"Register farmer and production unit details",
			"Record commodity type and expected yield",
		},
		AutomatedActions: []string{"Assign batch traceability identifier"},
	},
	{
		ID:          StageGeolocationVerification,
		Name:        "Geolocation Verification",
		Description: "Verify plot boundaries and coordinates for every production unit.",
		RequiredActions: []string{
			"Upload polygon or point geolocation for each plot",
			"Resolve overlapping or implausible boundaries",
		},
		AutomatedActions: []string{"Validate coordinates against country boundaries"},
	},
	{
		ID:          StageDeforestationCheck,
		Name:        "Deforestation Check",
		Description: "Screen production units against forest-change alert data.",
		RequiredActions: []string{
			"Review flagged alerts near registered plots",
		},
		AutomatedActions: []string{"Query alert source for the cutoff window"},
	},
	{
		ID:          StageCollectionAggregation,
		Name:        "Collection & Aggregation",
		Description: "Reconcile physical hand-offs from farm to aggregating supplier.",
		RequiredActions: []string{
			"Propose transfer for each hand-off",
			"Receiver confirms or disputes received quantity",
		},
		AutomatedActions: []string{"Anchor reconciled transfers to the ledger"},
	},
	{
		ID:          StageProcessing,
		Name:        "Processing",
		Description: "Record processing steps applied to the aggregated batch.",
		RequiredActions: []string{
			"Record processing facility and output quantities",
		},
		AutomatedActions: nil,
	},
	{
		ID:          StageRiskAssessment,
		Name:        "Risk Assessment",
		Description: "Compute the compliance risk classification for the batch.",
		RequiredActions: []string{
			"Review component breakdown and recommendations",
		},
		AutomatedActions: []string{"Run risk engine and store the classification"},
	},
	{
		ID:          StageDueDiligenceStatement,
		Name:        "Due Diligence Statement",
		Description: "Prepare and submit the regulator-facing due diligence statement.",
		RequiredActions: []string{
			"Attach mitigation evidence where risk is high",
			"Submit statement to the competent authority",
		},
		AutomatedActions: []string{"Verify risk gate before statement draft"},
	},
	{
		ID:          StageExportShipment,
		Name:        "Export & Shipment",
		Description: "Prepare export documentation and dispatch the shipment.",
		RequiredActions: []string{
			"Attach DDS reference to shipping documents",
		},
		AutomatedActions: nil,
	},
	{
		ID:          StageCustomsClearance,
		Name:        "Customs Clearance",
		Description: "Clear the shipment through origin and destination customs.",
		RequiredActions: []string{
			"Record customs declaration references",
		},
		AutomatedActions: nil,
	},
	{
		ID:          StageDeliveryComplete,
		Name:        "Delivery Complete",
		Description: "Confirm final delivery to the importing operator.",
		RequiredActions: []string{
			"Record delivery confirmation",
		},
		AutomatedActions: []string{"Close the batch trace"},
	},
}

var stageIndex = buildStageIndex()

func buildStageIndex() map[StageID]int {
	idx := make(map[StageID]int, len(stageSequence))
	for i, def := range stageSequence {
		idx[def.ID] = i
	}
	return idx
}

// Stages returns the full ordered stage sequence.
func Stages() []StageDefinition {
	out := make([]StageDefinition, len(stageSequence))
	copy(out, stageSequence)
	return out
}

func StageByID(id StageID) (StageDefinition, bool) {
	i, ok := stageIndex[id]
	if !ok {
		return StageDefinition{}, false
	}
	return stageSequence[i], true
}

// NextStage returns nil for the last stage or an unknown id.
func NextStage(id StageID) *StageDefinition {
	i, ok := stageIndex[id]
	if !ok || i == len(stageSequence)-1 {
		return nil
	}
	def := stageSequence[i+1]
	return &def
}

// PreviousStage returns nil for the first stage or an unknown id.
func PreviousStage(id StageID) *StageDefinition {
	i, ok := stageIndex[id]
	if !ok || i == 0 {
		return nil
	}
	def := stageSequence[i-1]
	return &def
}

func FirstStage() StageDefinition { return stageSequence[0] }
