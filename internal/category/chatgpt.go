// Package category assigns a spending category to parsed invoices using
// ChatGPT. The QR payload itself carries no category, so this fills the
// otherwise-empty ledger column; classification failures never block a save.
package category

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"twinvoice/internal/logger"
	"twinvoice/pkg/models"
)

// Labels is the fixed set of ledger categories the classifier may choose from.
var Labels = []string{
	"食品",
	"餐飲",
	"日用品",
	"交通",
	"醫療",
	"娛樂",
	"服飾",
	"其他",
}

// classification mirrors the JSON shape requested in the prompt.
type classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ChatGPTClassifier picks a category from Labels using an OpenAI chat model.
type ChatGPTClassifier struct {
	openaiClient *openai.Client
	model        string
	log          zerolog.Logger
}

// NewChatGPTClassifier creates a classifier. model may be empty to use
// GPT-4o mini.
func NewChatGPTClassifier(openaiClient *openai.Client, model string) *ChatGPTClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatGPTClassifier{
		openaiClient: openaiClient,
		model:        model,
		log:          logger.WithComponent("category"),
	}
}

// Categorize returns one label from Labels for the invoice, based on its
// seller name and item list. Returns "" (no category) when the invoice has
// nothing to classify on, or when the model's answer is not a known label.
func (c *ChatGPTClassifier) Categorize(ctx context.Context, inv *models.Invoice) (string, error) {
	const op = "Categorize"

	itemNames := make([]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		itemNames = append(itemNames, it.Name)
	}
	if inv.SellerName == "" && len(itemNames) == 0 {
		return "", nil
	}

	invoiceJSON, err := json.MarshalIndent(map[string]any{
		"賣方":   inv.SellerName,
		"品項":   itemNames,
		"總金額":  inv.TotalAmount,
		"發票日期": inv.InvoiceDate.Format("2006-01-02"),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal invoice JSON: %w", op, err)
	}

	prompt := fmt.Sprintf(`根據以下發票內容，從固定清單中選出一個消費分類：

發票：
%s

可用分類（只能選其中一個）：
%s

只回覆以下格式的 JSON：
{
  "category": "食品",
  "confidence": 0.95,
  "reason": "品項皆為食材"
}`, string(invoiceJSON), strings.Join(Labels, "、"))

	c.log.Debug().
		Str("invoice_number", inv.InvoiceNumber).
		Int("items", len(itemNames)).
		Msg("Sending classification request to ChatGPT")

	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("%s: ChatGPT request failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no response choices from ChatGPT", op)
	}

	var result classification
	cleaned := stripMarkdownFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return "", fmt.Errorf("%s: unparseable ChatGPT response: %w", op, err)
	}

	for _, label := range Labels {
		if result.Category == label {
			c.log.Debug().
				Str("category", label).
				Float64("confidence", result.Confidence).
				Str("reason", result.Reason).
				Msg("Classified invoice")
			return label, nil
		}
	}
	c.log.Warn().Str("category", result.Category).Msg("ChatGPT returned an unknown category; ignoring")
	return "", nil
}

// stripMarkdownFence unwraps responses the model wrapped in ```json blocks.
func stripMarkdownFence(response string) string {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
