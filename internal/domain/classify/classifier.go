// Package classify predicts a spending category for an order description
// using a closed vocabulary of category names.
package classify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/throttle"
)

// NoMatch is returned when the model's answer is not in the vocabulary.
const NoMatch = "No matching category found"

// ErrUnavailable marks a connectivity failure to the classification service.
// The caller treats the order as unclassifiable for this pass.
var ErrUnavailable = errors.New("classification service unavailable")

// MessagesClient sends one prompt and returns the model's answer.
type MessagesClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier maps free-text descriptions onto the category vocabulary.
type Classifier struct {
	client MessagesClient
	gate   throttle.Gate
}

// New creates a classifier paced by gate.
func New(client MessagesClient, gate throttle.Gate) *Classifier {
	return &Classifier{client: client, gate: gate}
}

// Classify asks the model to pick exactly one of the supplied category
// names for the description. Any answer outside the vocabulary collapses to
// NoMatch; the raw response is never passed through uncontrolled.
func (c *Classifier) Classify(ctx context.Context, description string, categories []string) (string, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return "", err
	}

	prompt := buildPrompt(description, categories)
	raw, err := c.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("classifying %q: %w", description, errors.Join(ErrUnavailable, err))
	}

	answer := strings.TrimSpace(raw)
	if slices.Contains(categories, answer) {
		return answer, nil
	}
	return NoMatch, nil
}

func buildPrompt(description string, categories []string) string {
	return fmt.Sprintf(
		"Given the following categories:<categories>%s</categories>, "+
			"classify the item with description <description>%s</description>. "+
			"Respond with only the category, no other text.",
		strings.Join(categories, ", "), description)
}
