package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultAuthURL    = "https://iam.cloud.ibm.com/identity/token"
	generationVersion = "2023-05-29"
	tokenExpirySkew   = 60 * time.Second
)

// GenParams are the generation parameters for one request.
type GenParams struct {
	DecodingMethod string
	MaxNewTokens   int
	Temperature    float64
	TopP           float64
	TopK           int
}

// WatsonxService calls the watsonx.ai text generation endpoint. API key
// auth goes through IBM IAM; the bearer token is cached until shortly
// before expiry.
type WatsonxService struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	projectID  string
	modelID    string

	// AuthURL is the IAM token endpoint, overridable in tests.
	AuthURL string

	rateChan chan struct{} // Token bucket

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewWatsonxService(apiKey, baseURL, projectID, modelID string, concurrentReqs int) *WatsonxService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &WatsonxService{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		projectID:  projectID,
		modelID:    modelID,
		AuthURL:    defaultAuthURL,
		rateChan:   rateChan,
	}
}

func (s *WatsonxService) ModelID() string   { return s.modelID }
func (s *WatsonxService) ProjectID() string { return s.projectID }

// acquireRate blocks until a rate slot is available
func (s *WatsonxService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for watsonx rate slot")
	}
}

func (s *WatsonxService) releaseRate() {
	s.rateChan <- struct{}{}
}

// accessToken exchanges the API key for an IAM bearer token, reusing
// the cached one while it is still fresh.
func (s *WatsonxService) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry.Add(-tokenExpirySkew)) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build IAM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("IAM token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{Status: resp.StatusCode, Message: "IAM token exchange failed: " + strings.TrimSpace(string(body))}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode IAM token response: %w", err)
	}

	s.token = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	log.Printf("watsonx: refreshed IAM token, valid for %ds", tokenResp.ExpiresIn)
	return s.token, nil
}

// Generate sends one prompt to the text generation endpoint and returns
// the generated text.
func (s *WatsonxService) Generate(ctx context.Context, prompt string, params GenParams) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	token, err := s.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"model_id":   s.modelID,
		"project_id": s.projectID,
		"input":      prompt,
		"parameters": map[string]interface{}{
			"decoding_method": params.DecodingMethod,
			"max_new_tokens":  params.MaxNewTokens,
			"temperature":     params.Temperature,
			"top_p":           params.TopP,
			"top_k":           params.TopK,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", s.baseURL, generationVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(resp.Body)}
	}

	var genResp struct {
		Results []struct {
			GeneratedText string `json:"generated_text"`
			StopReason    string `json:"stop_reason"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(genResp.Results) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "empty results from model"}
	}

	return strings.TrimSpace(genResp.Results[0].GeneratedText), nil
}

// upstreamMessage pulls the first error message out of a watsonx error
// body, falling back to the raw body.
func upstreamMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))

	var errResp struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &errResp); err == nil && len(errResp.Errors) > 0 {
		return errResp.Errors[0].Message
	}
	return strings.TrimSpace(string(raw))
}
