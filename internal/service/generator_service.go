package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/postpipe/postpipe/configs"
	"github.com/postpipe/postpipe/internal/transfer"
)

const generateEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// GeneratorService produces caption candidates for a planned post. Without
// an API key it degrades to deterministic placeholder captions so the rest
// of the pipeline stays usable.
type GeneratorService interface {
	GenerateCaptions(ctx context.Context, req *transfer.GenerateRequest) (*transfer.GenerateResponse, error)
}

type generatorService struct {
	cfg    *config.Config
	client *http.Client
}

func NewGeneratorService(cfg *config.Config) GeneratorService {
	return &generatorService{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *generatorService) GenerateCaptions(ctx context.Context, req *transfer.GenerateRequest) (*transfer.GenerateResponse, error) {
	if g.cfg.GeminiAPIKey == "" {
		slog.Warn("no generation API key configured, returning placeholder captions")
		return &transfer.GenerateResponse{Captions: placeholderCaptions(req)}, nil
	}

	prompt := g.buildPrompt(req)
	text, err := g.generate(ctx, prompt)
	if err != nil {
		slog.Error("caption generation failed", "error", err.Error())
		return &transfer.GenerateResponse{Captions: placeholderCaptions(req)}, nil
	}

	return &transfer.GenerateResponse{Captions: splitCaptions(text)}, nil
}

// buildPrompt prefers the per-type prompt templates from configuration and
// falls back to the raw request prompt.
func (g *generatorService) buildPrompt(req *transfer.GenerateRequest) string {
	base := ""
	switch strings.ToLower(req.PostType) {
	case "static":
		base = g.cfg.StaticPostPrompt
	case "video":
		base = g.cfg.VideoPostPrompt
	default:
		if strings.HasPrefix(strings.ToLower(req.PostType), "carousel") {
			base = g.cfg.CarouselPostPrompt
		}
	}
	if base == "" {
		return req.Prompt
	}
	if req.Prompt == "" {
		return base
	}
	return base + "\n\n" + req.Prompt
}

func (g *generatorService) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", generateEndpoint, g.cfg.GeminiAPIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation request returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generation response contained no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// splitCaptions turns a model response into individual caption options,
// treating blank lines as separators.
func splitCaptions(text string) []string {
	var captions []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			captions = append(captions, block)
		}
	}
	if len(captions) == 0 {
		captions = []string{strings.TrimSpace(text)}
	}
	return captions
}

func placeholderCaptions(req *transfer.GenerateRequest) []string {
	topic := req.Prompt
	if topic == "" {
		topic = "your next post"
	}
	return []string{
		fmt.Sprintf("Fresh %s content: %s", req.PostType, topic),
		fmt.Sprintf("Behind the scenes of %s", topic),
	}
}
