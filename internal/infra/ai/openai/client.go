package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/infra/ai/prompt"
	"github.com/bryanwahyu/docguard/internal/infra/detection/extract"
	"github.com/bryanwahyu/docguard/internal/logging"
)

const maxTokens = 2048

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client is a detection.Engine backed by an OpenAI chat model.
type Client struct {
	*openai.Client
	Model string
	// Source supplies document bytes; nil sends metadata only.
	Source detection.Source
	Clock  application.Clock
}

func NewClient(apiKey, model string, src detection.Source) *Client {
	return &Client{
		Client: openai.NewClient(apiKey),
		Model:  model,
		Source: src,
		Clock:  application.SystemClock{},
	}
}

// Detect asks the model for sensitive items in doc.
func (c *Client) Detect(ctx context.Context, doc *documents.Document) (detection.Result, error) {
	start := c.Clock.Now()

	content, err := c.content(ctx, doc)
	if err != nil {
		return detection.Result{}, err
	}

	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(doc.Title, doc.FileType, content)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return detection.Result{}, fmt.Errorf("%w: %s", detection.ErrQuotaExceeded, apiErr.Message)
		}
		return detection.Result{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return detection.Result{}, &detection.EngineError{Message: "Detection engine returned no answer"}
	}

	res, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return detection.Result{}, err
	}
	res.ProcessingTime = application.Seconds(c.Clock, start)
	return res, nil
}

func (c *Client) content(ctx context.Context, doc *documents.Document) (string, error) {
	if c.Source == nil || doc.FileKey == "" {
		return "", nil
	}
	data, err := c.Source.Get(ctx, doc.FileKey)
	if errors.Is(err, errs.ErrNotFound) {
		return "", &detection.EngineError{Message: "Document file not found in storage"}
	}
	if err != nil {
		return "", fmt.Errorf("fetch document %d: %w", doc.ID, err)
	}
	text, err := extract.Text(ctx, doc.FileType, data)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		// unreadable formats go out as metadata only
		logging.FromContext(ctx).Debug("document text unavailable", "document_id", doc.ID, "err", err)
		return "", nil
	}
	return text, nil
}

type response struct {
	Error          string           `json:"error"`
	RiskLevel      scans.RiskLevel  `json:"risk_level"`
	ProcessingTime float64          `json:"processing_time"`
	Items          []detection.Item `json:"sensitive_items"`
}

// ParseResponse decodes the model's JSON answer. An "error" member, or an
// answer that is not the expected object, becomes a *detection.EngineError.
func ParseResponse(raw string) (detection.Result, error) {
	var r response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return detection.Result{}, &detection.EngineError{Message: "Detection engine returned malformed output"}
	}
	if r.Error != "" {
		return detection.Result{}, &detection.EngineError{Message: r.Error}
	}
	if r.Items == nil {
		r.Items = []detection.Item{}
	}
	return detection.Result{
		RiskLevel:      scans.RiskLevel(strings.ToLower(string(r.RiskLevel))),
		ProcessingTime: r.ProcessingTime,
		Items:          r.Items,
	}, nil
}
