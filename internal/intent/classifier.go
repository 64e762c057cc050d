// Package intent maps free-text user input to a named assistant
// operation. Explicit command prefixes win over keyword matching.
package intent

import "strings"

// Action names one of the assistant operations a message can resolve to.
type Action string

const (
	ActionChat            Action = "chat"
	ActionAnalyzeSymptoms Action = "analyze_symptoms"
)

// Result is the classified intent plus its argument payload.
type Result struct {
	Action   Action
	Message  string // set for ActionChat
	Symptoms string // set for ActionAnalyzeSymptoms
}

// Messages containing one of these words AND an experiential phrase are
// routed to symptom analysis.
var medicalKeywords = []string{
	"pain", "fever", "headache", "nausea", "cough",
	"symptoms", "hurt", "ache", "sick", "illness",
}

var experientialPhrases = []string{"i have", "experiencing", "feeling", "symptoms"}

var analysisPrefixes = []string{"symptoms:", "analyze:"}

// Classify resolves a raw user message to an action and its arguments.
func Classify(message string) Result {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, prefix := range analysisPrefixes {
		if strings.HasPrefix(lower, prefix) {
			_, rest, _ := strings.Cut(message, ":")
			return Result{Action: ActionAnalyzeSymptoms, Symptoms: strings.TrimSpace(rest)}
		}
	}

	if containsAny(lower, medicalKeywords) && containsAny(lower, experientialPhrases) {
		return Result{Action: ActionAnalyzeSymptoms, Symptoms: message}
	}

	return Result{Action: ActionChat, Message: message}
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
