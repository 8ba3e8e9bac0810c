// Package advisor turns the current health picture into a remediation
// narrative using Gemini. Optional: the rest of the system runs without it.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

// ModelConfig defines configuration for a Gemini model.
type ModelConfig struct {
	Name        string
	Temperature float32
	TopP        float32
	TopK        int32
}

// AvailableModels defines the available Gemini models and their configurations.
var AvailableModels = map[string]ModelConfig{
	"flash": {
		Name:        "gemini-flash-latest",
		Temperature: 0.7,
		TopP:        0.95,
		TopK:        40,
	},
	"pro": {
		Name:        "gemini-pro-latest",
		Temperature: 0.7,
		TopP:        0.95,
		TopK:        40,
	},
	"flash-2": {
		Name:        "gemini-2.0-flash",
		Temperature: 0.7,
		TopP:        0.95,
		TopK:        40,
	},
}

// Context is the health picture handed to the model.
type Context struct {
	Health  health.Report               `json:"health"`
	Metrics *metrics.Snapshot           `json:"metrics,omitempty"`
	Issues  map[string][]appstate.Issue `json:"issues"`
}

// Advisor explains health reports in natural language.
type Advisor struct {
	client *genai.Client
	config ModelConfig
	log    *logging.Logger
}

// New creates an advisor. apiKey must be non-empty; callers should simply
// not construct an advisor when no key is configured.
func New(ctx context.Context, apiKey, modelKey string, log *logging.Logger) (*Advisor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if modelKey == "" {
		modelKey = "flash"
	}
	config, ok := AvailableModels[modelKey]
	if !ok {
		config = AvailableModels["flash"]
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Advisor{client: client, config: config, log: log}, nil
}

// Close releases the underlying client.
func (a *Advisor) Close() error {
	return a.client.Close()
}

func (a *Advisor) getModel() *genai.GenerativeModel {
	model := a.client.GenerativeModel(a.config.Name)
	model.SetTemperature(a.config.Temperature)
	model.SetTopP(a.config.TopP)
	model.SetTopK(a.config.TopK)
	return model
}

// Explain answers a question about the supplied health context. An empty
// question asks for a general assessment.
func (a *Advisor) Explain(ctx context.Context, question string, hc Context) (string, error) {
	if question == "" {
		question = "Summarize the current health of the application."
	}

	contextJSON, err := json.MarshalIndent(hc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode health context: %w", err)
	}

	prompt := fmt.Sprintf(`You are a desktop application health expert. Answer the following question based on the monitoring data.

Question: %s

Monitoring Data:
%s

The data contains a health report (score 0-100, status tier, threshold alerts), the latest resource metrics, and active issues grouped by subsystem (camera, obs, windows, system). Each issue carries a suggestion and the recovery actions that can address it.

Provide a clear, concise answer explaining:
1. What the data shows
2. Root causes if applicable
3. Severity and impact
4. Which of the listed recovery actions to run, if relevant

If the data is empty or insufficient, say so clearly.`, question, string(contextJSON))

	resp, err := a.getModel().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate explanation: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "Unable to generate an explanation from the available data.", nil
	}

	answer := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	a.log.Action("explain_health", "question", question, "chars", len(answer))
	return strings.TrimSpace(answer), nil
}
