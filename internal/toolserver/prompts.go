package toolserver

import (
	"fmt"
	"strings"

	"medichat-backend/internal/models"
)

// chatPrompt folds the trailing window of the conversation into a
// single generation prompt.
func chatPrompt(history []models.ChatMessage, window int) string {
	start := 0
	if len(history) > window {
		start = len(history) - window
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for _, msg := range history[start:] {
		label := "User"
		if msg.Role == models.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, msg.Content)
	}
	b.WriteString("\nPlease provide a helpful and accurate response:")
	return b.String()
}

func analysisPrompt(symptoms string, age int, gender string) string {
	patient := ""
	if age > 0 {
		patient += fmt.Sprintf("Age: %d. ", age)
	}
	if gender != "" {
		patient += fmt.Sprintf("Gender: %s. ", gender)
	}

	return fmt.Sprintf(`As a medical AI assistant, analyze these symptoms: %s
%s
Provide:
1. Possible common causes
2. General recommendations
3. When to seek immediate medical attention

Important: This is for informational purposes only and not a substitute for professional medical advice.

Analysis:`, symptoms, patient)
}

func summaryPrompt(history []models.ChatMessage) string {
	var b strings.Builder
	for _, msg := range history {
		label := "User"
		if msg.Role == models.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, msg.Content)
	}
	return fmt.Sprintf("Summarize this medical consultation conversation:\n\n%s\nSummary:", b.String())
}

func consultationPrompt(symptoms, duration, severity string) string {
	return fmt.Sprintf(`As a medical AI assistant, provide a structured consultation for:

Symptoms: %s
Duration: %s
Severity: %s

Please provide:
1. Initial assessment
2. Possible causes
3. Recommended next steps
4. Warning signs to watch for

Remember: This is preliminary guidance only. Always consult healthcare professionals for proper diagnosis.`, symptoms, duration, severity)
}

func educationPrompt(topic string) string {
	return fmt.Sprintf(`Provide comprehensive health education about: %s

Include:
1. Overview and definition
2. Common causes or risk factors
3. Prevention strategies
4. When to consult a healthcare provider

Make the information accessible and actionable for general audiences.`, topic)
}

func patientGreeting(name string) string {
	return fmt.Sprintf(`Hello %s! Welcome to your AI Medical Assistant.

I'm here to help you with:
- General health questions
- Symptom analysis
- Medical information lookup
- Health education

Please remember that I provide general information only and cannot replace professional medical advice. How can I assist you today?`, name)
}

func serverInfoText(info Info) string {
	return fmt.Sprintf(`Watsonx Medical Assistant Server
Version: %s
Backend: IBM watsonx.ai
Model: %s
Project: %s

Capabilities:
- Medical chat assistance
- Symptom analysis
- Conversation management
- Health education prompts`, info.Version, info.ModelID, info.ProjectID)
}
