package intent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		action   Action
		symptoms string
	}{
		{"plain chat", "What causes high blood pressure?", ActionChat, ""},
		{"keyword with experiential phrase", "I have a fever", ActionAnalyzeSymptoms, "I have a fever"},
		{"keyword without phrase stays chat", "Tell me about fever in general", ActionChat, ""},
		{"symptoms prefix", "symptoms: chest pain and shortness of breath", ActionAnalyzeSymptoms, "chest pain and shortness of breath"},
		{"analyze prefix", "analyze: headache, nausea", ActionAnalyzeSymptoms, "headache, nausea"},
		{"prefix case insensitive", "Symptoms: dizziness", ActionAnalyzeSymptoms, "dizziness"},
		{"feeling phrase", "feeling nausea since this morning", ActionAnalyzeSymptoms, "feeling nausea since this morning"},
		{"empty message", "", ActionChat, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.message)
			if got.Action != tc.action {
				t.Errorf("Expected action %q, got %q", tc.action, got.Action)
			}
			if tc.action == ActionAnalyzeSymptoms && got.Symptoms != tc.symptoms {
				t.Errorf("Expected symptoms %q, got %q", tc.symptoms, got.Symptoms)
			}
			if tc.action == ActionChat && got.Message != tc.message {
				t.Errorf("Expected message %q, got %q", tc.message, got.Message)
			}
		})
	}
}

func TestClassifyPrefixBeatsKeywords(t *testing.T) {
	// The explicit prefix must win even when the rest of the message
	// reads like ordinary chat.
	got := Classify("analyze: please just tell me a story")
	if got.Action != ActionAnalyzeSymptoms {
		t.Fatalf("Expected analyze_symptoms for explicit prefix, got %q", got.Action)
	}
	if got.Symptoms != "please just tell me a story" {
		t.Errorf("Expected prefix payload extracted, got %q", got.Symptoms)
	}
}
