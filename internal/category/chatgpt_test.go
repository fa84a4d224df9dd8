package category

import (
	"context"
	"testing"

	"twinvoice/pkg/models"
)

func TestCategorizeNothingToClassify(t *testing.T) {
	c := NewChatGPTClassifier(nil, "")

	// No seller name and no items: no API call is made and no category given.
	label, err := c.Categorize(context.Background(), &models.Invoice{
		InvoiceNumber: "AB12345678",
		TotalAmount:   100,
	})
	if err != nil {
		t.Fatalf("Categorize error: %v", err)
	}
	if label != "" {
		t.Errorf("label = %q, want empty", label)
	}
}

func TestStripMarkdownFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"{\"category\": \"食品\"}", "{\"category\": \"食品\"}"},
		{"```json\n{\"category\": \"食品\"}\n```", "{\"category\": \"食品\"}"},
		{"```\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"  {\"a\": 1}  ", "{\"a\": 1}"},
	}
	for _, tt := range tests {
		if got := stripMarkdownFence(tt.in); got != tt.want {
			t.Errorf("stripMarkdownFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
