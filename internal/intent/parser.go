package intent

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	parseOp         = "parse intent"
	defaultModel    = "gemini-2.5-flash"
	defaultTimeout  = 30 * time.Second
	maxPromptLength = 4000
)

//go:embed prompt.txt
var systemPrompt string

// Parser turns free text into an intent.
type Parser interface {
	Parse(ctx context.Context, text string) (model.Intent, error)
}

// ContainerSource supplies container names the model may refer to.
type ContainerSource interface {
	List(ctx context.Context) ([]model.Container, error)
}

// GeminiConfig configures GeminiParser.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	Location   *time.Location
	Containers ContainerSource
	HTTPClient *http.Client
}

// GeminiParser asks a Gemini model for a JSON intent.
type GeminiParser struct {
	client     *genai.Client
	model      string
	loc        *time.Location
	containers ContainerSource
	now        func() time.Time
}

// NewGeminiParser creates a parser backed by the Gemini API.
func NewGeminiParser(ctx context.Context, cfg GeminiConfig) (*GeminiParser, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p := &GeminiParser{
		client:     client,
		model:      cfg.Model,
		loc:        cfg.Location,
		containers: cfg.Containers,
		now:        time.Now,
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	return p, nil
}

// Parse sends text to the model and decodes the reply. Any failure is a
// parse failure.
func (p *GeminiParser) Parse(ctx context.Context, text string) (model.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Intent{}, failure.Parse(parseOp, errors.New("empty message"))
	}
	if len(text) > maxPromptLength {
		return model.Intent{}, failure.Parse(parseOp, fmt.Errorf("message longer than %d bytes", maxPromptLength))
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.instructions(ctx), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		return model.Intent{}, failure.Parse(parseOp, fmt.Errorf("generate: %w", err))
	}
	reply := resp.Text()
	zerolog.Ctx(ctx).Debug().Str("model", p.model).Str("reply", reply).Msg("parser reply")

	in, err := DecodeReply(reply)
	if err != nil {
		return model.Intent{}, failure.Parse(parseOp, err)
	}
	return in, nil
}

func (p *GeminiParser) instructions(ctx context.Context) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\nCurrent time: ")
	b.WriteString(p.now().In(p.loc).Format("2006-01-02T15:04:05 Monday"))
	b.WriteString(" (")
	b.WriteString(p.loc.String())
	b.WriteString(")\n")
	if p.containers == nil {
		return b.String()
	}
	items, err := p.containers.List(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("containers unavailable for parser context")
		return b.String()
	}
	b.WriteString("Known lists (name: id):\n")
	for _, c := range items {
		if c.Closed {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.ID)
	}
	return b.String()
}

// DecodeReply decodes a model reply, tolerating a fenced code block.
func DecodeReply(reply string) (model.Intent, error) {
	body := strings.TrimSpace(reply)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	if body == "" {
		return model.Intent{}, errors.New("empty reply")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return model.Intent{}, fmt.Errorf("reply is not a json object: %w", err)
	}
	return Decode(raw)
}
