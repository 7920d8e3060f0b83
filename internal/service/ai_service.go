package service

import (
	"context"
	"errors"
	"fmt"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/pkg/logger"
	"net/http"
	"strings"
	"sync"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-2.5-flash"

	feedbackSystemPrompt = "You are an expert interview coach. You evaluate interview transcripts and reply with a single JSON object and nothing else."
)

var ErrAINotConfigured = errors.New("ai provider is not configured")

var aiTracer = otel.Tracer("ai")

// textBackend 单个模型提供方
type textBackend interface {
	complete(ctx context.Context, prompt string) (string, error)
	name() string
}

// AIService 报告生成使用的文本模型客户端，支持热更新配置
type AIService struct {
	mu      sync.RWMutex
	backend textBackend
	cfg     config.AIConfig
	http    *http.Client
}

// AIOption 构造 AIService 时的可选项
type AIOption func(*AIService)

// WithHTTPClient 指定 openai 后端使用的 HTTP 客户端，之后的 Reload 沿用
func WithHTTPClient(c *http.Client) AIOption {
	return func(s *AIService) { s.http = c }
}

func NewAIService(ctx context.Context, cfg config.AIConfig, opts ...AIOption) (*AIService, error) {
	s := &AIService{}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 按新配置重建客户端。未配置 api_key 时进入未配置状态，Complete 返回 ErrAINotConfigured
func (s *AIService) Reload(ctx context.Context, cfg config.AIConfig) error {
	var (
		backend textBackend
		err     error
	)
	if strings.TrimSpace(cfg.APIKey) != "" {
		switch cfg.Provider {
		case ProviderGemini:
			backend, err = newGeminiBackend(ctx, cfg)
		case "", ProviderOpenAI:
			backend = newOpenAIBackend(cfg, s.http)
		default:
			err = fmt.Errorf("unsupported ai provider %q", cfg.Provider)
		}
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.backend = backend
	s.cfg = cfg
	s.mu.Unlock()

	if backend == nil {
		logger.Log.Warn("AI provider not configured, feedback will use fallback reports")
	} else {
		logger.Log.Info("AI provider ready", zap.String("provider", backend.name()), zap.String("model", cfg.Model))
	}
	return nil
}

func (s *AIService) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend != nil
}

// Complete 实现 interview.TextGenerator
func (s *AIService) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.RLock()
	backend := s.backend
	s.mu.RUnlock()
	if backend == nil {
		return "", ErrAINotConfigured
	}

	ctx, span := aiTracer.Start(ctx, "ai.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", backend.name()),
		attribute.Int("ai.prompt_chars", len(prompt)),
	)

	text, err := backend.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("ai.response_chars", len(text)))
	return text, nil
}

type openAIBackend struct {
	client openaigo.Client
	model  string
}

func newOpenAIBackend(cfg config.AIConfig, httpClient *http.Client) *openAIBackend {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout()),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base+"/"))
	}
	return &openAIBackend{client: openaigo.NewClient(opts...), model: model}
}

func (b *openAIBackend) name() string { return ProviderOpenAI }

func (b *openAIBackend) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(b.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(feedbackSystemPrompt),
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, cfg config.AIConfig) (*geminiBackend, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) name() string { return ProviderGemini }

func (b *geminiBackend) complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(feedbackSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	res, err := b.client.Models.GenerateContent(ctx, b.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("gemini generate content: empty response")
	}
	return text, nil
}
