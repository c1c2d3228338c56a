package generative

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel edits images through the Gemini API
type GeminiModel struct {
	client *genai.Client
}

// NewGeminiModel creates a Gemini-backed ImageModel
func NewGeminiModel(ctx context.Context, apiKey string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiModel{client: client}, nil
}

// EditImage sends the instructions and the image in one user turn and
// asks for an image-only reply
func (g *GeminiModel) EditImage(ctx context.Context, model, instructions string, img Image) (*Image, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(instructions),
		genai.NewPartFromBytes(img.Data, img.MimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return extractImage(resp)
}

// extractImage returns the first inline image of the first candidate
func extractImage(resp *genai.GenerateContentResponse) (*Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrNoImageData
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, ErrNoImageData
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return &Image{Data: part.InlineData.Data, MimeType: mimeType}, nil
	}

	return nil, ErrNoImageData
}
