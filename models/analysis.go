package models

// AnalysisResult is the structured payload returned by the extraction
// service. Field names match the JSON schema sent with the extraction
// prompt, so the service output unmarshals directly into this type.
type AnalysisResult struct {
	Summary              string          `json:"summary"`
	PurchasePrice        string          `json:"purchasePrice"`
	EarnestMoney         string          `json:"earnestMoney"`
	ClosingDate          string          `json:"closingDate"`
	InspectionPeriod     string          `json:"inspectionPeriod"`
	FinancingContingency string          `json:"financingContingency"`
	AppraisalContingency string          `json:"appraisalContingency"`
	Contingencies        []Contingency   `json:"contingencies"`
	ImportantDates       []ImportantDate `json:"importantDates"`
	Risks                []RiskFinding   `json:"risks"`
	Recommendations      []string        `json:"recommendations"`
	KeyTerms             []KeyTerm       `json:"keyTerms"`
}

// Contingency is a contractual condition with a deadline.
// Status is one of: active, expired, waived, satisfied.
type Contingency struct {
	Name          string `json:"name"`
	Deadline      string `json:"deadline"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
	Critical      bool   `json:"critical"`
}

// ImportantDate is a dated contract event.
// Status is one of: upcoming, completed, overdue.
type ImportantDate struct {
	Event       string `json:"event"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DaysUntil   *int   `json:"daysUntil,omitempty"`
}

// RiskFinding is a single itemized risk. Level is one of: high, medium, low.
type RiskFinding struct {
	Level          string `json:"level"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// KeyTerm is a notable contract term.
// Importance is one of: critical, important, standard.
type KeyTerm struct {
	Term        string `json:"term"`
	Value       string `json:"value"`
	Section     string `json:"section"`
	Importance  string `json:"importance"`
	Explanation string `json:"explanation,omitempty"`
}
