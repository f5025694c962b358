package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skole",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of lesson text generation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skole",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of lesson text generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1200
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	tracer := otel.Tracer("github.com/noah-isme/skole-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Generate asks the model for a lesson text and parses the JSON reply.
func (g *OpenAIGenerator) Generate(parent context.Context, input GenerationInput) (GenerationResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("lesson.level", input.Level),
		attribute.String("lesson.language", input.Language),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: generatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return GenerationResult{}, g.fail(span, fmt.Errorf("openai generate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return GenerationResult{}, g.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := parseGenerationResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return GenerationResult{}, g.fail(span, err)
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	g.logger.Debug().Str("model", g.cfg.Model).Int("chars", len(result.Text)).Msg("lesson text generated")
	return result, nil
}

func (g *OpenAIGenerator) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(g.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func generatorSystemPrompt() string {
	return "You write reading texts for language learners. Respond with a JSON object containing title and text. " +
		"Match the requested CEFR level and language, and keep the vocabulary appropriate for that level."
}

func buildUserPrompt(input GenerationInput) string {
	wordCount := input.WordCount
	if wordCount <= 0 {
		wordCount = 250
	}

	builder := strings.Builder{}
	builder.WriteString("# Topic\n")
	builder.WriteString(input.Topic)
	builder.WriteString("\n\n## Level\n")
	builder.WriteString(defaultString(input.Level, "B1"))
	builder.WriteString("\n\n## Language\n")
	builder.WriteString(defaultString(input.Language, "en"))
	builder.WriteString("\n\n## Text type\n")
	builder.WriteString(defaultString(input.TextType, "article"))
	builder.WriteString(fmt.Sprintf("\n\n## Length\nAbout %d words.", wordCount))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseGenerationResponse(content string) (GenerationResult, error) {
	var data struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return GenerationResult{}, fmt.Errorf("parse generation json: %w", err)
	}

	text := strings.TrimSpace(data.Text)
	if text == "" {
		return GenerationResult{}, fmt.Errorf("generation returned empty text")
	}

	return GenerationResult{
		Title: strings.TrimSpace(data.Title),
		Text:  text,
	}, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
