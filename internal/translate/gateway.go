package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Gateway validates requests and forwards them to a text-generation provider.
type Gateway struct {
	gen         llm.Generator
	model       string
	domain      string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

func NewGateway(gen llm.Generator, cfg config.TranslateConfig, logger *slog.Logger) *Gateway {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		gen:         gen,
		model:       cfg.Model,
		domain:      cfg.Domain,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "translate-gateway")),
	}
}

// SystemPrompt is the fixed instruction sent ahead of every request.
func SystemPrompt(domain, targetLang string) string {
	if domain == "" {
		domain = "general"
	}
	return fmt.Sprintf("You are a %s translation assistant. Translate clearly, preserve meaning, and keep/expand %s terminology accurately. "+
		"Output ONLY the translation in %s. Never add information that is not present in the source text. "+
		"If the input has patient-identifiable info, do not add extra details.", domain, domain, targetLang)
}

// UserPrompt carries the source language, or "auto", and the text.
func UserPrompt(sourceLang, text string) string {
	if sourceLang == "" {
		sourceLang = "auto"
	}
	return "Source language: " + sourceLang + "\nText: " + text
}

func (g *Gateway) Translate(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		recordOutcome(ctx, outcomeInvalid)
		return Result{}, err
	}

	ctx, span := otel.Tracer("github.com/loqalabs/loqa-interpret/translate").Start(ctx, "translate")
	defer span.End()
	span.SetAttributes(
		attribute.String("translate.target_lang", req.TargetLang),
		attribute.String("translate.source_lang", req.SourceLang),
		attribute.Int("translate.chars", len(req.Text)),
	)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := llm.Collect(ctx, g.gen, llm.Request{
		System:      SystemPrompt(g.domain, req.TargetLang),
		Prompt:      UserPrompt(req.SourceLang, req.Text),
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Warn("translation provider failed",
			slog.String("target_lang", req.TargetLang),
			slog.Int("chars", len(req.Text)),
			slogError(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		recordOutcome(ctx, outcomeFailed)
		return Result{}, ErrProvider
	}
	recordOutcome(ctx, outcomeOK)
	g.logger.Debug("translation complete",
		slog.String("target_lang", req.TargetLang),
		slog.Duration("latency", time.Since(start)))
	return Result{Translated: strings.TrimSpace(out)}, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
