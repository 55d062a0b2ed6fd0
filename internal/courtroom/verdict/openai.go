package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const defaultResponsesURL = "https://api.openai.com/v1/responses"

// OpenAIConfig configures the OpenAI-backed ruling generator.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	ResponsesURL string
	HTTPClient   *http.Client
}

// OpenAIGenerator produces rulings through the OpenAI responses API.
type OpenAIGenerator struct {
	cfg OpenAIConfig
}

// NewOpenAIGenerator builds a generator, applying endpoint and client
// defaults.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = defaultResponsesURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIGenerator{cfg: cfg}, nil
}

// Generate renders the session record into a prompt, invokes the
// responses API, and parses the ruling out of the model output.
func (g *OpenAIGenerator) Generate(ctx context.Context, input Input) (Ruling, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return Ruling{}, fmt.Errorf("session id is required")
	}

	requestBody, err := json.Marshal(map[string]any{
		"model": g.cfg.Model,
		"input": buildPrompt(input),
	})
	if err != nil {
		return Ruling{}, fmt.Errorf("marshal verdict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return Ruling{}, fmt.Errorf("build verdict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material is sent only as an Authorization header and is
	// never echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	res, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return Ruling{}, fmt.Errorf("verdict request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return Ruling{}, fmt.Errorf("read verdict error body: %w", readErr)
		}
		return Ruling{}, fmt.Errorf("verdict request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Ruling{}, fmt.Errorf("decode verdict response: %w", err)
	}

	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					outputText = strings.TrimSpace(content.Text)
					break
				}
			}
			if outputText != "" {
				break
			}
		}
	}
	if outputText == "" {
		return Ruling{}, fmt.Errorf("verdict response contained no output text")
	}

	ruling := parseRuling(outputText)
	ruling.Model = g.cfg.Model
	return ruling, nil
}

// buildPrompt flattens the accumulated session material into a single
// deterministic prompt. Participant sections are ordered by id so the
// same input always produces the same prompt.
func buildPrompt(input Input) string {
	var b strings.Builder
	b.WriteString("You are a fair, warm arbiter for a couple's dispute. ")
	b.WriteString("Given both parties' evidence, the automated analysis, and their resolution preferences, ")
	b.WriteString("produce a JSON object with fields \"summary\" and \"decision\".\n")

	for _, participantID := range sortedKeys(input.Evidence) {
		fmt.Fprintf(&b, "\nEvidence from %s:\n%s\n", participantID, input.Evidence[participantID])
	}
	if strings.TrimSpace(input.Analysis) != "" {
		fmt.Fprintf(&b, "\nAnalysis:\n%s\n", input.Analysis)
	}
	for _, participantID := range sortedKeys(input.ResolutionChoices) {
		fmt.Fprintf(&b, "\nResolution preference from %s: %s\n", participantID, input.ResolutionChoices[participantID])
	}
	return b.String()
}

// parseRuling prefers structured model output but tolerates plain text
// by folding it into the summary.
func parseRuling(outputText string) Ruling {
	var ruling Ruling
	if err := json.Unmarshal([]byte(outputText), &ruling); err == nil {
		if strings.TrimSpace(ruling.Summary) != "" || strings.TrimSpace(ruling.Decision) != "" {
			return ruling
		}
	}
	return Ruling{Summary: outputText}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
