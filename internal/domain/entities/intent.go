package entities

// Intent represents the discrete category of information a clinical query asks for.
type Intent string

const (
	IntentRetrieveMedications Intent = "retrieve_medications" // e.g., "what is the patient taking"
	IntentRetrieveConditions  Intent = "retrieve_conditions"  // e.g., "active diagnoses"
	IntentRetrieveLabs        Intent = "retrieve_labs"        // e.g., "latest a1c result"
	IntentRetrieveNotes       Intent = "retrieve_notes"       // e.g., "last visit note"
	IntentRetrieveCarePlans   Intent = "retrieve_care_plans"  // e.g., "current treatment plan"
	IntentRetrieveVitals      Intent = "retrieve_vitals"      // e.g., "blood pressure readings"
	IntentSummarize           Intent = "summarize"            // e.g., "summarize the chart"
	IntentGeneral             Intent = "general"              // default when nothing matched
)

// ValidIntents returns all valid intent values.
func ValidIntents() []Intent {
	return []Intent{
		IntentRetrieveMedications,
		IntentRetrieveConditions,
		IntentRetrieveLabs,
		IntentRetrieveNotes,
		IntentRetrieveCarePlans,
		IntentRetrieveVitals,
		IntentSummarize,
		IntentGeneral,
	}
}

// IsValid checks if the intent value is one of the defined constants.
func (i Intent) IsValid() bool {
	switch i {
	case IntentRetrieveMedications, IntentRetrieveConditions, IntentRetrieveLabs,
		IntentRetrieveNotes, IntentRetrieveCarePlans, IntentRetrieveVitals,
		IntentSummarize, IntentGeneral:
		return true
	}
	return false
}

// IntentScore pairs an intent with its normalized confidence score.
type IntentScore struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
