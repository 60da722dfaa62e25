package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
)

// maxPagesPerDocument caps the pages sent to the vision model per document
const maxPagesPerDocument = 2

// Parser extracts structured expense data from uploaded receipt and invoice
// documents using a vision model.
//
// The parser owns the messy boundary: whatever the model returns is
// validated and normalized here, so the merge layer only ever sees
// well-formed expense.UploadResult values.
type Parser struct {
	client      *openai.Client
	reader      *DocumentReader
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewParser creates a document parser
func NewParser(apiKey, model string, temperature float32, logger *zap.Logger) *Parser {
	return &Parser{
		client:      openai.NewClient(apiKey),
		reader:      NewDocumentReader(logger),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// rawResult mirrors the JSON shape the model is instructed to return
type rawResult struct {
	Description string    `json:"description"`
	Items       []rawItem `json:"items"`
}

type rawItem struct {
	Description string `json:"description"`
	IncurredAt  string `json:"incurred_at"`
	Amount      *struct {
		ValueInCents int64  `json:"value_in_cents"`
		Currency     string `json:"currency"`
	} `json:"amount"`
}

// ParseDocument extracts expense data from the document at path. fileURL is
// the stored location the resulting items reference. A document the model
// finds no line items in comes back as a file-only result, not an error.
func (p *Parser) ParseDocument(ctx context.Context, path, fileURL string) (expense.UploadResult, error) {
	p.logger.Info("Parsing expense document", zap.String("path", path))

	pages, err := p.reader.ReadPages(path)
	if err != nil {
		return expense.UploadResult{}, fmt.Errorf("read document: %w", err)
	}
	if len(pages) > maxPagesPerDocument {
		pages = pages[:maxPagesPerDocument]
	}

	raw, err := p.extractWithVision(ctx, pages)
	if err != nil {
		return expense.UploadResult{}, err
	}

	result := normalizeResult(raw, fileURL)
	itemCount := 0
	if result.Parsed != nil {
		itemCount = len(result.Parsed.Items)
	}
	p.logger.Info("Document parsed",
		zap.String("file_url", fileURL),
		zap.Int("items", itemCount))
	return result, nil
}

func (p *Parser) extractWithVision(ctx context.Context, pages [][]byte) (*rawResult, error) {
	contentParts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: extractionPrompt,
	}}
	for _, page := range pages {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(page)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   4096,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You read receipts and invoices and extract structured expense data. Always respond with valid JSON.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		p.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision extraction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	var raw rawResult
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		p.logger.Error("Failed to parse vision response",
			zap.Error(err), zap.String("content", content))
		return nil, fmt.Errorf("parse vision response: %w", err)
	}
	return &raw, nil
}

// normalizeResult turns the model's output into a validated UploadResult.
// Malformed entries are dropped individually; a document without any usable
// item degrades to a file-only result.
func normalizeResult(raw *rawResult, fileURL string) expense.UploadResult {
	result := expense.UploadResult{FileURL: fileURL}
	if raw == nil {
		return result
	}

	var items []expense.ParsedItem
	for _, ri := range raw.Items {
		item := expense.ParsedItem{
			URL:         fileURL,
			Description: strings.TrimSpace(ri.Description),
		}
		if ri.IncurredAt != "" {
			if t, err := time.Parse("2006-01-02", ri.IncurredAt); err == nil {
				item.IncurredAt = &t
			}
		}
		if ri.Amount != nil {
			currency := strings.ToUpper(strings.TrimSpace(ri.Amount.Currency))
			if len(currency) == 3 && ri.Amount.ValueInCents >= 0 {
				item.Amount = &expense.ParsedAmount{
					ValueCents: ri.Amount.ValueInCents,
					Currency:   currency,
				}
			}
		}
		if item.Description == "" && item.Amount == nil && item.IncurredAt == nil {
			continue
		}
		items = append(items, item)
	}

	description := strings.TrimSpace(raw.Description)
	if len(items) > 0 || description != "" {
		result.Parsed = &expense.ParsedExpense{
			Description: description,
			Items:       items,
		}
	}
	return result
}

const extractionPrompt = `Examine this receipt or invoice and extract the expense data.

Return a JSON object with this exact structure:
{
  "description": "short summary of what was purchased",
  "items": [
    {
      "description": "line item description",
      "incurred_at": "YYYY-MM-DD",
      "amount": {"value_in_cents": number, "currency": "ISO 4217 code"}
    }
  ]
}

IMPORTANT:
- Amounts are integers in minor units (cents): $12.00 becomes 1200.
- Extract EXACTLY what you see. Do not guess or make up values.
- If a field is not visible or unclear, omit it.
- If the document is not a receipt or invoice, return {"items": []}.`
