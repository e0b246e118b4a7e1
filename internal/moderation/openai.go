package moderation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// maxInputChars bounds the text sent to the moderation endpoint. Longer
// content is classified on its prefix; the API rejects oversized payloads.
const maxInputChars = 32000

// OpenAIClassifier calls the OpenAI moderation endpoint.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier builds a classifier for the given API key and model.
// baseURL overrides the API host when non-empty, which also lets tests point
// the client at a local fake.
func NewOpenAIClassifier(apiKey, model, baseURL string) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Classify sends text to the moderation endpoint and maps the result onto a
// Verdict. The reason lists the categories that tripped the filter.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	if text == "" {
		return Verdict{}, nil
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: c.model,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return Verdict{}, fmt.Errorf("moderation response had no results")
	}

	result := resp.Results[0]
	if !result.Flagged {
		return Verdict{}, nil
	}

	return Verdict{Flagged: true, Reason: flaggedReason(result.Categories)}, nil
}

func flaggedReason(cat openai.ResultCategories) string {
	var names []string
	for _, c := range []struct {
		name string
		hit  bool
	}{
		{"hate", cat.Hate},
		{"hate/threatening", cat.HateThreatening},
		{"harassment", cat.Harassment},
		{"harassment/threatening", cat.HarassmentThreatening},
		{"self-harm", cat.SelfHarm},
		{"self-harm/intent", cat.SelfHarmIntent},
		{"self-harm/instructions", cat.SelfHarmInstructions},
		{"sexual", cat.Sexual},
		{"sexual/minors", cat.SexualMinors},
		{"violence", cat.Violence},
		{"violence/graphic", cat.ViolenceGraphic},
	} {
		if c.hit {
			names = append(names, c.name)
		}
	}
	if len(names) == 0 {
		return "flagged"
	}
	return strings.Join(names, ", ")
}
