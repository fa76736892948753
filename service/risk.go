package services

import (
	"strings"

	model "github.com/ankitm14/ContractSage/models"
)

// OverallRiskLevel reduces itemized risk findings to a single tier using
// worst-wins aggregation. An empty or absent findings list means low:
// absence of detected risk is never an error. Unknown levels are ignored.
func OverallRiskLevel(risks []model.RiskFinding) string {
	level := model.RiskLow
	for _, r := range risks {
		switch strings.ToLower(strings.TrimSpace(r.Level)) {
		case model.RiskHigh:
			return model.RiskHigh
		case model.RiskMedium:
			level = model.RiskMedium
		}
	}
	return level
}
