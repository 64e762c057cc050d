package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Session cookie signing
	SessionSecret string

	// Tool subprocess
	ToolServerCommand    string
	BridgeCallTimeoutSec int

	// Conversation memory (~1000 tokens)
	MaxHistoryChars int

	// Frontend
	FrontendURL string
}

// ToolServerConfig is loaded by the tool subprocess binary. It talks to
// watsonx.ai directly, so its credentials are required.
type ToolServerConfig struct {
	WatsonxAPIKey  string
	WatsonxURL     string
	ProjectID      string
	ModelID        string
	ConcurrentReqs int

	ServerName    string
	ServerVersion string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", "dev-secret-key-replace-me"),
		ToolServerCommand:    getEnvOrDefault("TOOL_SERVER_COMMAND", "medichat-toolserver"),
		BridgeCallTimeoutSec: getEnvAsIntOrDefault("BRIDGE_CALL_TIMEOUT_SECONDS", 30),
		MaxHistoryChars:      getEnvAsIntOrDefault("MAX_HISTORY_CHARS", 4000),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	return cfg
}

func LoadToolServer() *ToolServerConfig {
	godotenv.Load()

	return &ToolServerConfig{
		WatsonxAPIKey:  mustGetEnv("WATSONX_APIKEY"),
		WatsonxURL:     getEnvOrDefault("WATSONX_URL", "https://us-south.ml.cloud.ibm.com"),
		ProjectID:      mustGetEnv("PROJECT_ID"),
		ModelID:        getEnvOrDefault("MODEL_ID", "meta-llama/llama-3-2-90b-vision-instruct"),
		ConcurrentReqs: getEnvAsIntOrDefault("WATSONX_CONCURRENT_REQUESTS", 2),
		ServerName:     getEnvOrDefault("TOOL_SERVER_NAME", "Watsonx Medical Assistant"),
		ServerVersion:  getEnvOrDefault("TOOL_SERVER_VERSION", "1.0.0"),
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
