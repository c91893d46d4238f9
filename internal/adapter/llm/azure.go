package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
	"sleuth/internal/infra/config"
	"sleuth/internal/infra/tracer"
)

const defaultAzureAPIVersion = "2024-08-01-preview"

// AzureProvider implements domain.LLMProvider for Azure OpenAI deployments.
// Azure speaks the same chat-completion wire format as OpenAI but routes by
// deployment name, authenticates with an api-key header, and versions the API
// through a query parameter.
type AzureProvider struct {
	name        string
	deployment  string
	apiKey      string
	endpoint    string
	apiVersion  string
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

// NewAzureProvider creates an Azure OpenAI provider. cfg.Model is the
// deployment name; cfg.BaseURL is the resource endpoint
// (https://<resource>.openai.azure.com).
func NewAzureProvider(cfg config.ProviderConfig, logger *slog.Logger) *AzureProvider {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}

	return &AzureProvider{
		name:        cfg.Name,
		deployment:  cfg.Model,
		apiKey:      cfg.APIKey,
		endpoint:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion:  apiVersion,
		temperature: cfg.Temperature,
		client:      NewHTTPClient(cfg),
		logger:      logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *AzureProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.deployment", p.deployment),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.deployment
	}
	if req.Temperature == 0 {
		req.Temperature = p.temperature
	}

	body, err := json.Marshal(toOpenAIRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))

	respBody, err := doJSONRequest(ctx, p.client, endpoint, body, map[string]string{
		"api-key": p.apiKey,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrParse, err)
	}

	result := fromOpenAIResponse(oaiResp)
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *AzureProvider) Name() string { return p.name }
