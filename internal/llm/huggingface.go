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
)

// DefaultHuggingFaceURL is the hosted inference API
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

const (
	gemmaUserTurn  = "<start_of_turn>user\n"
	gemmaModelTurn = "<start_of_turn>model\n"
	gemmaEndTurn   = "<end_of_turn>"
)

// HuggingFace calls one model on the inference API
type HuggingFace struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

// NewHuggingFace creates a provider for a single hosted model. The token may
// be empty for public models, at the cost of strict rate limits.
func NewHuggingFace(baseURL, token, model string) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	return &HuggingFace{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p,omitempty"`
	DoSample     bool    `json:"do_sample"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFace) Name() string { return "huggingface/" + h.model }

// Generate posts the prompt and returns the first generation
func (h *HuggingFace) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	inputs := prompt
	if h.isGemma() {
		inputs = gemmaUserTurn + prompt + gemmaEndTurn + "\n" + gemmaModelTurn
	}

	reqBody := hfRequest{
		Inputs: inputs,
		Parameters: hfParameters{
			MaxNewTokens: params.MaxTokens,
			Temperature:  params.Temperature,
			TopP:         params.TopP,
			DoSample:     true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", h.baseURL, h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling huggingface API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("huggingface API error (status %d): %s", resp.StatusCode, string(body))
	}

	var generations []hfGeneration
	if err := json.NewDecoder(resp.Body).Decode(&generations); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(generations) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.ReplaceAll(generations[0].GeneratedText, prompt, "")
	if h.isGemma() {
		text = unwrapGemma(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (h *HuggingFace) isGemma() bool {
	return strings.Contains(strings.ToLower(h.model), "gemma")
}

// unwrapGemma keeps only the model turn of a Gemma transcript
func unwrapGemma(text string) string {
	if i := strings.LastIndex(text, gemmaModelTurn); i >= 0 {
		text = text[i+len(gemmaModelTurn):]
	}
	text, _, _ = strings.Cut(text, gemmaEndTurn)
	return text
}
