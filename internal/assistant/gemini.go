package assistant

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// generator is the part of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	ChatModel    string
	InsightModel string
	SpeechModel  string
	Voice        string
}

func DefaultConfig() Config {
	return Config{
		ChatModel:    "gemini-3-pro-preview",
		InsightModel: "gemini-2.5-flash-lite",
		SpeechModel:  "gemini-2.5-flash-preview-tts",
		Voice:        "Kore",
	}
}

type Gemini struct {
	models generator
	cfg    Config
	source ContextSource
}

// NewGemini wraps an already constructed client. The client is shared and
// owned by the caller.
func NewGemini(client *genai.Client, cfg Config, source ContextSource) *Gemini {
	return newGemini(client.Models, cfg, source)
}

func newGemini(models generator, cfg Config, source ContextSource) *Gemini {
	def := DefaultConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.InsightModel == "" {
		cfg.InsightModel = def.InsightModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = def.SpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	return &Gemini{models: models, cfg: cfg, source: source}
}

func (g *Gemini) Chat(ctx context.Context, history []Message, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := RoleUser
		if m.Role == RoleModel {
			role = RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Text)},
		})
	}
	contents = append(contents, genai.NewContentFromText(input, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.systemContext(), genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.cfg.ChatModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation: %w", err)
	}
	return responseText(resp)
}

// QuickInsight asks the fast model for a two sentence executive summary.
func (g *Gemini) QuickInsight(ctx context.Context) (string, error) {
	prompt := "Analise os dados fornecidos e gere um resumo executivo de 2 frases sobre a saúde financeira atual e qual ação imediata deve ser tomada.\n\n" +
		g.systemContext()

	resp, err := g.models.GenerateContent(ctx, g.cfg.InsightModel, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("insight generation: %w", err)
	}
	return responseText(resp)
}

// Speak synthesises text as 24 kHz mono 16-bit PCM. Markdown emphasis and
// heading markers are stripped first.
func (g *Gemini) Speak(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(StripMarkdown(text))
	if text == "" {
		return nil, ErrEmptyInput
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}
	resp, err := g.models.GenerateContent(ctx, g.cfg.SpeechModel, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("speech generation: %w", err)
	}

	if resp != nil {
		for _, c := range resp.Candidates {
			if c == nil || c.Content == nil {
				continue
			}
			for _, p := range c.Content.Parts {
				if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
					return p.InlineData.Data, nil
				}
			}
		}
	}
	return nil, ErrNoAudio
}

func (g *Gemini) systemContext() string {
	var summary string
	if g.source != nil {
		summary = g.source.Summary()
	}
	return "Você é o assistente IA especializado para o Primo Couto Family Holdings (PCFH).\n\n" +
		"DADOS ATUAIS DO SISTEMA:\n" + summary + "\n" +
		"INSTRUÇÕES:\n" +
		"1. Responda de forma profissional, direta e útil para a família Primo Couto.\n" +
		"2. Use formatação Markdown para listas ou ênfase.\n" +
		"3. Se perguntado sobre riscos ou ações, baseie-se nos alertas atuais.\n" +
		"4. Mantenha as respostas concisas."
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	var b strings.Builder
	if resp != nil {
		for _, c := range resp.Candidates {
			if c == nil || c.Content == nil {
				continue
			}
			for _, p := range c.Content.Parts {
				if p != nil && p.Text != "" {
					b.WriteString(p.Text)
				}
			}
			if b.Len() > 0 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "", ErrNoResponse
	}
	return b.String(), nil
}

var markdownStripper = strings.NewReplacer("*", "", "#", "")

func StripMarkdown(s string) string {
	return markdownStripper.Replace(s)
}
