// Package seo produces search metadata for catalog products, asking a hosted
// language model first and falling back to a fixed template.
package seo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storefront-service/internal/model"
)

const (
	SourceAI       = "ai"
	SourceTemplate = "template"

	maxTitleLength   = 60
	descriptionCut   = 157
	maxKeywords      = 10
	brandName        = "MyJourmals"
	systemPrompt     = "You are an SEO expert. Always respond with valid JSON only."
	completionTokens = 500
)

var ErrMissingInput = errors.New("title and description are required")

// Request is the product text to optimise
type Request struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Slug        string `json:"slug,omitempty"`
}

// Result is the generated metadata
type Result struct {
	SEOTitle       string   `json:"seoTitle"`
	SEODescription string   `json:"seoDescription"`
	Keywords       []string `json:"keywords"`
	CanonicalURL   string   `json:"canonicalUrl,omitempty"`
	Source         string   `json:"source"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator creates SEO metadata
type Generator struct {
	client  chatClient
	model   string
	siteURL string
	log     *zap.Logger
}

// NewGenerator builds a Generator for an OpenAI-compatible endpoint. Without an
// API key every request uses the template.
func NewGenerator(apiKey, baseURL, modelName, siteURL string, log *zap.Logger) *Generator {
	g := &Generator{model: modelName, siteURL: strings.TrimRight(siteURL, "/"), log: log}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		g.client = openai.NewClientWithConfig(cfg)
	}
	return g
}

// Generate returns AI-written metadata when the model answers with usable
// JSON and the template otherwise. Model failures never surface as errors.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return nil, ErrMissingInput
	}

	var res *Result
	if g.client != nil {
		r, err := g.fromModel(ctx, req)
		if err != nil {
			g.log.Warn("AI generation failed, using fallback", zap.Error(err))
		} else {
			res = r
		}
	}
	if res == nil {
		res = Fallback(req.Title, req.Description, req.Category)
	}

	if req.Slug != "" && g.siteURL != "" {
		res.CanonicalURL = g.siteURL + "/product/" + req.Slug
	}
	return res, nil
}

func (g *Generator) fromModel(ctx context.Context, req Request) (*Result, error) {
	prompt := fmt.Sprintf(`Generate SEO content in JSON format for:
Title: %s
Description: %s
Category: %s

Return only JSON with: seoTitle (max 60 chars), seoDescription (max 160 chars), keywords (array of 8-10 keywords)`,
		req.Title, req.Description, req.Category)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   completionTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("empty completion")
	}
	return parseCompletion(resp.Choices[0].Message.Content)
}

// parseCompletion strips markdown code fences and decodes the JSON body
func parseCompletion(text string) (*Result, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var body struct {
		SEOTitle       string          `json:"seoTitle"`
		SEODescription string          `json:"seoDescription"`
		Keywords       json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}

	// Non-array keywords are dropped rather than failing the whole answer
	keywords := []string{}
	if len(body.Keywords) > 0 {
		var list []string
		if err := json.Unmarshal(body.Keywords, &list); err == nil {
			keywords = list
		}
	}

	return &Result{
		SEOTitle:       body.SEOTitle,
		SEODescription: body.SEODescription,
		Keywords:       keywords,
		Source:         SourceAI,
	}, nil
}

var categoryKeywords = map[model.Category][]string{
	model.CategoryMagazines:  {"custom magazine", "personalized magazine", "magazine printing", "photo magazine"},
	model.CategoryJournals:   {"custom journal", "personalized journal", "writing journal", "diary"},
	model.CategoryScrapbooks: {"custom scrapbook", "memory book", "photo album", "keepsake book"},
	model.CategoryTools:      {"craft supplies", "scrapbooking tools", "craft materials", "DIY tools"},
}

// Fallback builds metadata from a fixed template
func Fallback(title, description, category string) *Result {
	cat, err := model.ParseCategory(category)
	singular := strings.TrimSuffix(category, "s")
	if err == nil {
		singular = cat.Singular()
	}

	lowerTitle := strings.ToLower(title)
	keywords := append([]string{}, categoryKeywords[cat]...)
	keywords = append(keywords, "custom "+lowerTitle, "personalized "+lowerTitle)
	keywords = append(keywords, longWords(strings.Split(lowerTitle, " "), 3, 3)...)

	descWords := strings.Split(strings.ToLower(description), " ")
	if len(descWords) > 20 {
		descWords = descWords[:20]
	}
	keywords = append(keywords, longWords(descWords, 4, 3)...)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	return &Result{
		SEOTitle:       truncate(fmt.Sprintf("%s - Custom %s | %s", title, singular, brandName), maxTitleLength),
		SEODescription: truncate(description, descriptionCut) + "...",
		Keywords:       keywords,
		Source:         SourceTemplate,
	}
}

// longWords returns up to limit words longer than minLen runes
func longWords(words []string, minLen, limit int) []string {
	var out []string
	for _, w := range words {
		if len(out) == limit {
			break
		}
		if utf8.RuneCountInString(w) > minLen {
			out = append(out, w)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
