// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// =============================================================================
// OPENAI GATEWAY
// =============================================================================

const (
	defaultModel        = "gpt-4o-mini"
	defaultCallTimeout  = 120 * time.Second
	defaultMaxRetries   = 3
	defaultRequestsPerS = 1
	maxIssuesInPrompt   = 50
)

const systemPrompt = `You are a build-repair assistant. You receive compiler
diagnostics from a broken project and propose corrective actions. Respond ONLY
with fenced directive blocks; any other text is discarded.

Available directives:

` + "```" + `mend:command
<single shell command>
<optional one-line rationale>
` + "```" + `

` + "```" + `mend:fix path=<relative path> op=<create|modify|delete>
<complete new file content>
` + "```" + `

` + "```" + `mend:patch
<unified diff against the current file content>
` + "```" + `

Order commands so prerequisites run first (dependency resolution before code
generation). Prefer the smallest change that removes errors without breaking
working code.`

// GatewayConfig configures the OpenAI-backed suggestion gateway.
type GatewayConfig struct {
	// APIKey authenticates against the endpoint. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a local model server.
	BaseURL string

	// Model is the chat model name. Defaults to gpt-4o-mini.
	Model string

	// CallTimeout bounds one completion call. Defaults to 120s.
	CallTimeout time.Duration

	// MaxRetries bounds retry attempts on transport failures.
	MaxRetries int

	// RequestsPerSecond throttles outbound calls. Defaults to 1.
	RequestsPerSecond float64
}

// OpenAIGateway implements Gateway against an OpenAI-compatible endpoint.
//
// Thread Safety: Safe for concurrent use.
type OpenAIGateway struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
}

// NewOpenAIGateway creates a gateway from config.
//
// Description:
//
//	Resolves the API key from config or the OPENAI_API_KEY environment
//	variable and applies defaults for model, timeout, and throttling.
//	A BaseURL pointing at a local model server (llama.cpp, vLLM, Ollama)
//	works unchanged since those speak the same chat completion protocol.
//
// Inputs:
//
//	cfg - Gateway configuration
//
// Outputs:
//
//	*OpenAIGateway - The configured gateway
//	error - ErrInvalidInput if no API key can be resolved
func NewOpenAIGateway(cfg GatewayConfig) (*OpenAIGateway, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrInvalidInput)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
		slog.Warn("gateway model not set, using default", slog.String("model", model))
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerS
	}

	return &OpenAIGateway{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		timeout:    timeout,
		maxRetries: retries,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Suggest implements Gateway.
//
// Description:
//
//	Renders the snapshot and history into a prompt, calls the chat
//	completion endpoint with rate limiting and exponential-backoff
//	retries, and parses the transcript into typed directives. Patch
//	directives resolve pre-images from files under req.ProjectPath.
//
// Outputs:
//
//	*Response - Parsed directives, possibly empty
//	error - ErrGatewayUnavailable after exhausting retries
func (g *OpenAIGateway) Suggest(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Snapshot == nil {
		return nil, fmt.Errorf("%w: nil request or snapshot", ErrInvalidInput)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := renderPrompt(req)

	transcript, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	reader := func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(req.ProjectPath, filepath.FromSlash(path)))
	}
	resp := ParseDirectives(transcript, reader)

	slog.Debug("gateway suggestions parsed",
		slog.Int("commands", len(resp.Commands)),
		slog.Int("fixes", len(resp.Fixes)))
	return resp, nil
}

// complete performs one rate-limited, retried chat completion call.
func (g *OpenAIGateway) complete(ctx context.Context, prompt string) (string, error) {
	var transcript string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Warn("completion call failed, will retry",
				slog.String("error", err.Error()))
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		transcript = resp.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(g.maxRetries)),
		ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return transcript, nil
}

// renderPrompt formats the snapshot and history for the model.
func renderPrompt(req *Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The project at %s fails to compile with %d errors",
		filepath.Base(req.ProjectPath), req.Snapshot.ErrorCount)
	if req.Snapshot.WarningCount > 0 {
		fmt.Fprintf(&b, " and %d warnings", req.Snapshot.WarningCount)
	}
	b.WriteString(".\n\nDiagnostics:\n")

	errors := req.Snapshot.Errors()
	shown := errors
	if len(shown) > maxIssuesInPrompt {
		shown = shown[:maxIssuesInPrompt]
	}
	for _, issue := range shown {
		fmt.Fprintf(&b, "  %s: %s: %s: %s\n",
			issue.Severity, issue.Location(), issue.Code, issue.Message)
	}
	if len(errors) > len(shown) {
		fmt.Fprintf(&b, "  ... and %d more errors\n", len(errors)-len(shown))
	}

	if len(req.History) > 0 {
		b.WriteString("\nEarlier attempts this session:\n")
		for _, a := range req.History {
			fmt.Fprintf(&b, "  attempt %d: %d errors remaining, trend %s, %d commands, %d fixes\n",
				a.Number, a.ErrorCount, a.Trend, a.CommandsRun, a.FixesApplied)
		}
		b.WriteString("\nDo not repeat actions that regressed or made no progress.\n")
	}

	b.WriteString("\nPropose directives to bring the project to a compiling state.")
	return b.String()
}
