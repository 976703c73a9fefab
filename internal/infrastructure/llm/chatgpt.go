package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReviewScanner/internal/config"
	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
)

// ChatGPTClient implements ports.Explainer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Explainer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, httpClient *http.Client) *ChatGPTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   httpClient,
	}
}

// Configured reports whether an API key and endpoint are present.
func (c *ChatGPTClient) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

type completion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Explain asks the model why a review received its verdict.
func (c *ChatGPTClient) Explain(ctx context.Context, reviewText string, verdict domain.Verdict) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if !c.Configured() {
		return "", fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": userPrompt(reviewText, verdict)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("explain review: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out completion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chatgpt returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func userPrompt(reviewText string, verdict domain.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review: %s\n", reviewText)
	fmt.Fprintf(&b, "Verdict: %s\n", verdict.Label.Title())
	if verdict.Message != "" {
		fmt.Fprintf(&b, "Model message: %s\n", verdict.Message)
	}
	if len(verdict.Reasons) > 0 {
		fmt.Fprintf(&b, "Model reasons: %s\n", strings.Join(verdict.Reasons, "; "))
	}
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You explain why a product review was classified as fake, suspicious or genuine."
	}
	return prompt
}
