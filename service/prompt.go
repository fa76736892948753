package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxContractChars bounds the document text embedded in the extraction
// prompt. A deliberate latency/cost cap: very long contracts lose tail
// content rather than blowing up completion time.
const maxContractChars = 24000

// maxCompletionTokens bounds the completion output.
const maxCompletionTokens = 4096

const extractionSystemPrompt = `You are an expert real estate contract analyst. ` +
	`You extract structured data from purchase contracts with precision. ` +
	`Respond with a single valid JSON object only: no markdown fences, no commentary.`

// analysisSchema is the literal target schema sent with every extraction
// request. It mirrors models.AnalysisResult field for field.
const analysisSchema = `{
  "summary": "2-3 sentence plain-language overview of the contract",
  "purchasePrice": "purchase price as written, e.g. $500,000",
  "earnestMoney": "earnest money deposit amount",
  "closingDate": "closing date as written",
  "inspectionPeriod": "inspection period terms",
  "financingContingency": "financing contingency terms",
  "appraisalContingency": "appraisal contingency terms",
  "contingencies": [
    {
      "name": "contingency name",
      "deadline": "deadline as written",
      "status": "active|expired|waived|satisfied",
      "description": "what the contingency requires",
      "daysRemaining": 0,
      "critical": true
    }
  ],
  "importantDates": [
    {
      "event": "event name",
      "date": "date as written",
      "description": "why this date matters",
      "status": "upcoming|completed|overdue",
      "daysUntil": 0
    }
  ],
  "risks": [
    {
      "level": "high|medium|low",
      "category": "risk category",
      "description": "what the risk is",
      "recommendation": "how to address it"
    }
  ],
  "recommendations": ["actionable recommendation"],
  "keyTerms": [
    {
      "term": "term name",
      "value": "term value",
      "section": "contract section",
      "importance": "critical|important|standard",
      "explanation": "optional plain-language explanation"
    }
  ]
}`

// buildExtractionPrompt assembles the user instruction for the text
// strategy: the literal target schema plus the extracted document text,
// truncated to the prompt budget.
func buildExtractionPrompt(text string) string {
	text = truncateText(text, maxContractChars)
	return fmt.Sprintf(`Analyze the following contract and return a JSON object matching exactly this schema:

%s

Omit nothing: use empty strings or empty arrays for anything the contract does not specify.

Contract Text:
%s`, analysisSchema, strings.TrimSpace(text))
}

// truncateText shortens s to at most max bytes without splitting a
// multi-byte character.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// buildFilePrompt assembles the user instruction for the file-native
// strategy, where the document travels alongside the request instead of
// inline.
func buildFilePrompt() string {
	return fmt.Sprintf(`Analyze the attached contract document and return a JSON object matching exactly this schema:

%s

Omit nothing: use empty strings or empty arrays for anything the contract does not specify.`, analysisSchema)
}
