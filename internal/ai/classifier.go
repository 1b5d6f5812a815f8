package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single classification call
const DefaultTimeout = 30 * time.Second

const systemPrompt = "You classify emails for an invoicing workflow. Always respond with valid JSON."

const approvalPromptTemplate = `Analyze the following email and determine if it is approving a timesheet or invoice submission.

Email content:
---
%s
---

Answer with a JSON object in this exact format:
{"is_approval": true/false, "confidence": 0.0-1.0, "reason": "brief explanation"}

Consider these as approval indicators:
- Words like "approved", "accepted", "ok", "agreed", "confirmed"
- Slovak words like "schvalene", "schvalujem", "suhlasim", "v poriadku"
- Positive acknowledgment of timesheet/invoice receipt

Consider these as non-approval indicators:
- Questions or requests for changes
- Rejections or denials
- Unrelated emails

Respond ONLY with the JSON object, no other text.`

var jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

type approvalVerdict struct {
	IsApproval bool    `json:"is_approval"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classifier is the LLM fallback tier of approval detection
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(apiKey, model string, temperature float32, timeout time.Duration, logger *zap.Logger) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// ClassifyApproval judges whether the email body approves a submission.
// Any internal failure, including timeout, yields (false, 0.0) — an explicit
// uncertain result the caller routes to manual escalation.
func (c *Classifier) ClassifyApproval(ctx context.Context, body string) (bool, float64) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildApprovalPrompt(body)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Warn("Classifier call failed, returning uncertain", zap.Error(err))
		return false, 0.0
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("Classifier returned no choices, returning uncertain")
		return false, 0.0
	}

	isApproval, confidence, err := parseApprovalResponse(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("Failed to parse classifier response, returning uncertain",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return false, 0.0
	}

	c.logger.Debug("Email classified",
		zap.Bool("is_approval", isApproval),
		zap.Float64("confidence", confidence))

	return isApproval, confidence
}

func buildApprovalPrompt(body string) string {
	return fmt.Sprintf(approvalPromptTemplate, body)
}

func parseApprovalResponse(content string) (bool, float64, error) {
	jsonText := content
	if m := jsonBlockPattern.FindStringSubmatch(content); m != nil {
		jsonText = m[1]
	}

	var verdict approvalVerdict
	if err := json.Unmarshal([]byte(jsonText), &verdict); err != nil {
		return false, 0, err
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return verdict.IsApproval, confidence, nil
}
