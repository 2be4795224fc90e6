package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RegisterProvider defines a Genkit model backed by client and returns it.
// The model is named "<provider>/<model>", e.g. "openrouter/openai/gpt-oss-20b:free".
func RegisterProvider(ctx context.Context, client *Client) (*genkit.Genkit, ai.Model) {
	g := genkit.Init(ctx)

	name := string(client.Provider()) + "/" + client.Model()
	model := genkit.DefineModel(
		g,
		name,
		&ai.ModelOptions{
			Label: client.Model() + " (via " + string(client.Provider()) + ")",
			Supports: &ai.ModelSupports{
				Multiturn:  true,
				SystemRole: true,
			},
		},
		func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			text, err := client.Generate(ctx, requestText(req))
			if err != nil {
				return nil, err
			}
			return &ai.ModelResponse{
				Request: req,
				Message: &ai.Message{
					Role:    ai.RoleModel,
					Content: []*ai.Part{ai.NewTextPart(text)},
				},
			}, nil
		},
	)

	return g, model
}

// requestText flattens the text parts of every message into one prompt.
func requestText(req *ai.ModelRequest) string {
	var parts []string
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		for _, p := range msg.Content {
			if p != nil && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// GenkitGenerator is a TextGenerator that routes prompts through a Genkit
// model.
type GenkitGenerator struct {
	model ai.Model
}

// NewGenkitGenerator registers client with Genkit and wraps the resulting
// model.
func NewGenkitGenerator(ctx context.Context, client *Client) *GenkitGenerator {
	_, model := RegisterProvider(ctx, client)
	return &GenkitGenerator{model: model}
}

// Generate implements TextGenerator.
func (g *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.Generate(ctx, &ai.ModelRequest{
		Messages: []*ai.Message{
			{
				Role:    ai.RoleUser,
				Content: []*ai.Part{ai.NewTextPart(prompt)},
			},
		},
	}, nil)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Message == nil {
		return "", errors.New("genkit model returned no message")
	}

	var sb strings.Builder
	for _, p := range resp.Message.Content {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("genkit model returned no text")
	}
	return sb.String(), nil
}
