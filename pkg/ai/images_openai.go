package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatImageGenerator calls an OpenAI-compatible /v1/images/generations
// endpoint and returns hosted image URLs.
type OpenAICompatImageGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatImageGenerator builds an OpenAI-compatible ImageGenerator.
func NewOpenAICompatImageGenerator(baseURL, apiKey, model string) *OpenAICompatImageGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAICompatImageGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateImages implements ImageGenerator.
func (g *OpenAICompatImageGenerator) GenerateImages(ctx context.Context, prompt string, count int, size string) ([]string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("image prompt required")
	}
	if count <= 0 {
		count = 1
	}
	if strings.TrimSpace(size) == "" {
		size = "1024x1024"
	}
	reqBody := oaiImageRequest{
		Model:          g.model,
		Prompt:         prompt,
		N:              count,
		Size:           size,
		ResponseFormat: "url",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := g.baseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return nil, fmt.Errorf("image api error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("image api error: %s", resp.Status)
	}

	var imgResp oaiImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}
	urls := make([]string, 0, len(imgResp.Data))
	for _, d := range imgResp.Data {
		if strings.TrimSpace(d.URL) != "" {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("empty response from image api")
	}
	return urls, nil
}

type oaiImageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type oaiImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}
