package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"shopsphere/storefront/internal/service/gemini"
)

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts gemini.Options) (string, error)
}

type FailureReason string

const (
	FailureNone               FailureReason = ""
	FailureUnavailable        FailureReason = "unavailable"
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureQuotaExceeded      FailureReason = "quota_exceeded"
	FailureMalformedResponse  FailureReason = "malformed_response"
	FailureUnknown            FailureReason = "unknown"
)

const (
	invalidCredentialsText = "Failed to generate description: Invalid API Key or insufficient permissions. Please check your Gemini API configuration."
	quotaExceededText      = "Failed to generate description: API quota exceeded. Please try again later."
)

var (
	plainOptions = gemini.Options{Temperature: 0.7, TopP: 0.9, TopK: 40}
	jsonOptions  = gemini.Options{Temperature: 0.7, TopP: 0.9, TopK: 50, JSON: true}

	codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")
	newlines  = regexp.MustCompile(`\n+`)
)

type DescriptionRequest struct {
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
	Category string `json:"category"`
}

// Description always carries usable text. Failure tells why the text is a
// fallback instead of generated copy.
type Description struct {
	Text    string        `json:"description"`
	Failure FailureReason `json:"failure,omitempty"`
}

// DescriptionService writes product copy with a text model. It never fails:
// every error becomes guidance or placeholder text.
type DescriptionService struct {
	generator TextGenerator
}

// NewDescriptionService accepts a nil generator, in which case every call
// returns placeholder text.
func NewDescriptionService(generator TextGenerator) *DescriptionService {
	return &DescriptionService{generator: generator}
}

func (s *DescriptionService) Available() bool {
	return s.generator != nil
}

func (s *DescriptionService) Generate(ctx context.Context, req DescriptionRequest) Description {
	if s.generator == nil {
		log.Printf("ai: generator not configured, returning placeholder description")
		return Description{
			Text: fmt.Sprintf("This is a mock description for %s in category %s with keywords: %s. It's a high-quality item perfect for your needs. (AI service not available)",
				req.Name, req.Category, req.Keywords),
			Failure: FailureUnavailable,
		}
	}

	prompt := fmt.Sprintf(`Generate a compelling and concise product description (around 50-70 words) for an e-commerce platform.
Product Name: "%s"
Category: "%s"
Key features/keywords: "%s"
The description should be engaging, highlight key benefits, and encourage a purchase. Do not use markdown or lists. Output only the description text.`,
		req.Name, req.Category, req.Keywords)

	text, err := s.generator.Generate(ctx, prompt, plainOptions)
	if err != nil {
		log.Printf("ai: error generating product description: %v", err)
		if d, ok := classify(err); ok {
			return d
		}
		return Description{
			Text: fmt.Sprintf("Error generating description with AI. As a fallback, this %s is a great item in the %s category, known for %s.",
				req.Name, req.Category, req.Keywords),
			Failure: FailureUnknown,
		}
	}

	return Description{Text: cleanDescription(text)}
}

// GenerateJSON asks the model for a {"description": ...} object instead of
// free text.
func (s *DescriptionService) GenerateJSON(ctx context.Context, req DescriptionRequest) Description {
	if s.generator == nil {
		log.Printf("ai: generator not configured, returning placeholder JSON description")
		return Description{
			Text:    fmt.Sprintf("Mock AI-generated JSON description for %s (%s): %s. (AI service not available)", req.Name, req.Category, req.Keywords),
			Failure: FailureUnavailable,
		}
	}

	prompt := fmt.Sprintf(`
You are an expert e-commerce copywriter.
Generate a product description for the following product.
Product Name: %s
Category: %s
Keywords: %s
The output must be a valid JSON object with a single key "description" containing the generated text (around 50-70 words).
Example: {"description": "Your amazing product description here."}
`, req.Name, req.Category, req.Keywords)

	text, err := s.generator.Generate(ctx, prompt, jsonOptions)
	failure := FailureUnknown
	if err == nil {
		text, err = parseDescriptionJSON(text)
		failure = FailureMalformedResponse
	}
	if err != nil {
		log.Printf("ai: error generating product description (JSON): %v", err)
		if d, ok := classify(err); ok {
			return d
		}
		return Description{
			Text: fmt.Sprintf("Error processing AI response for %s. Manually describe this item in %s category, known for %s. (%s)",
				req.Name, req.Category, req.Keywords, err.Error()),
			Failure: failure,
		}
	}

	return Description{Text: newlines.ReplaceAllString(text, " ")}
}

var errInvalidShape = errors.New(`invalid JSON structure in AI response, expected {"description": string}`)

func parseDescriptionJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(raw); m != nil && m[1] != "" {
		raw = strings.TrimSpace(m[1])
	}

	var out struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("failed to decode AI response: %w", err)
	}
	if out.Description == nil {
		return "", errInvalidShape
	}
	return *out.Description, nil
}

// classify maps provider errors that have dedicated guidance text.
func classify(err error) (Description, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid") || strings.Contains(msg, "PERMISSION_DENIED"):
		return Description{Text: invalidCredentialsText, Failure: FailureInvalidCredentials}, true
	case strings.Contains(msg, "quota"):
		return Description{Text: quotaExceededText, Failure: FailureQuotaExceeded}, true
	}
	return Description{}, false
}

func cleanDescription(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)
	return newlines.ReplaceAllString(text, " ")
}
