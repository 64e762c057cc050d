// medichat-chatbot is the terminal front-end: it spawns the tool
// subprocess and runs a REPL against it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"medichat-backend/internal/bridge"
	"medichat-backend/internal/config"
	"medichat-backend/internal/intent"
)

const banner = `🏥 Medical Assistant Chatbot
============================
Commands:
  /help      Show this help
  /symptoms  Guided symptom analysis
  /summary   Summarize the conversation
  /clear     Clear conversation history
  /quit      Exit

Tip: start a message with "symptoms:" for a quick analysis.
⚠️  General information only, not medical diagnosis.`

const analysisDisclaimer = "\n\n⚠️ **Important:** This analysis is for informational purposes only. Please consult a healthcare professional for proper diagnosis."

func main() {
	log.SetOutput(os.Stderr)

	cfg := config.Load()

	assistant := bridge.NewClient(cfg.ToolServerCommand, nil,
		time.Duration(cfg.BridgeCallTimeoutSec)*time.Second)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := assistant.Start(startCtx)
	cancel()
	if err != nil {
		log.Fatalf("✗ Tool subprocess failed to start: %v", err)
	}
	defer assistant.Shutdown()

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		renderer = nil
	}

	fmt.Println(banner)
	fmt.Println()

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			// Ctrl+C or Ctrl+D ends the session.
			fmt.Println("\nTake care! 👋")
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !runCommand(input, assistant, line, renderer) {
				return
			}
			continue
		}

		respond(assistant, renderer, input)
	}
}

// runCommand handles slash commands; returns false when the session
// should end.
func runCommand(input string, assistant *bridge.Client, line *liner.State, renderer *glamour.TermRenderer) bool {
	switch strings.ToLower(input) {
	case "/quit", "/exit":
		fmt.Println("Take care! 👋")
		return false

	case "/help":
		fmt.Println(banner)

	case "/clear":
		msg, err := assistant.ClearHistory(context.Background())
		if err != nil {
			printError(err)
			return true
		}
		fmt.Println(msg)

	case "/summary":
		summary, err := assistant.Summary(context.Background())
		if err != nil {
			printError(err)
			return true
		}
		printMarkdown(renderer, "📋 **Conversation Summary:**\n\n"+summary)

	case "/symptoms":
		guidedAnalysis(assistant, line, renderer)

	default:
		fmt.Printf("Unknown command %s, try /help\n", input)
	}
	return true
}

// respond classifies free text and runs the matching tool.
func respond(assistant *bridge.Client, renderer *glamour.TermRenderer, input string) {
	result := intent.Classify(input)

	switch result.Action {
	case intent.ActionAnalyzeSymptoms:
		analysis, err := assistant.AnalyzeSymptoms(context.Background(), result.Symptoms, 0, "")
		if err != nil {
			printError(err)
			return
		}
		printMarkdown(renderer, "🏥 **Medical Analysis:**\n\n"+analysis+analysisDisclaimer)

	default:
		reply, err := assistant.Chat(context.Background(), result.Message)
		if err != nil {
			printError(err)
			return
		}
		printMarkdown(renderer, reply)
	}
}

// guidedAnalysis collects symptoms plus optional patient details.
func guidedAnalysis(assistant *bridge.Client, line *liner.State, renderer *glamour.TermRenderer) {
	symptoms, err := line.Prompt("Describe your symptoms: ")
	if err != nil || strings.TrimSpace(symptoms) == "" {
		fmt.Println("No symptoms given.")
		return
	}

	age := 0
	if ageStr, err := line.Prompt("Age (optional): "); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(ageStr)); err == nil && n > 0 {
			age = n
		}
	}

	gender := ""
	if g, err := line.Prompt("Gender (optional): "); err == nil {
		gender = strings.TrimSpace(g)
	}

	analysis, err := assistant.AnalyzeSymptoms(context.Background(), strings.TrimSpace(symptoms), age, gender)
	if err != nil {
		printError(err)
		return
	}
	printMarkdown(renderer, "🏥 **Medical Analysis:**\n\n"+analysis+analysisDisclaimer)
}

func printMarkdown(renderer *glamour.TermRenderer, text string) {
	if renderer != nil {
		if out, err := renderer.Render(text); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(text)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "✗ %v\n", err)
}
