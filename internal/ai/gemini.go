package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lankyjo/coast/internal/config"
)

// Schema is a response schema in the Gemini OpenAPI subset.
type Schema map[string]any

// Generator turns a prompt into a JSON document shaped by schema.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema Schema) ([]byte, error)
}

var ErrNotConfigured = errors.New("AI is not configured")

// Gemini calls the generateContent endpoint with JSON output forced.
type Gemini struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewGemini(cfg config.AIConfig) *Gemini {
	return &Gemini{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   Schema  `json:"responseSchema"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	if g.APIKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
			Temperature:      0.4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.BaseURL, g.Model, url.QueryEscape(g.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("model error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("model returned no candidates")
	}

	var text bytes.Buffer
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.Bytes(), nil
}

func object(props Schema, required ...string) Schema {
	return Schema{"type": "OBJECT", "properties": props, "required": required}
}

func str() Schema { return Schema{"type": "STRING"} }

func enum(values ...string) Schema { return Schema{"type": "STRING", "enum": values} }

func number() Schema { return Schema{"type": "NUMBER"} }

func array(items Schema) Schema { return Schema{"type": "ARRAY", "items": items} }

var (
	taskDraftSchema = object(Schema{
		"title":          str(),
		"description":    str(),
		"priority":       enum("low", "medium", "high", "urgent"),
		"subtasks":       array(str()),
		"estimatedHours": number(),
	}, "title", "description", "priority", "subtasks")

	subtaskListSchema = object(Schema{
		"subtasks": array(str()),
	}, "subtasks")

	assigneeSchema = object(Schema{
		"assigneeId": str(),
		"reason":     str(),
	}, "assigneeId", "reason")

	deadlineSchema = object(Schema{
		"deadline": str(),
		"reason":   str(),
	}, "deadline", "reason")

	summarySchema = object(Schema{
		"summary":    str(),
		"highlights": array(str()),
		"blockers":   array(str()),
	}, "summary", "highlights")
)
