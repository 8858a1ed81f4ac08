package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"loan-risk/domain"
	"loan-risk/report"
)

const (
	DefaultAIModel = "gemini-2.0-flash"
	aiTimeout      = 30 * time.Second
)

const systemInstruction = `You are a credit risk analyst. You explain Monte Carlo
loss simulations of loan portfolios to non-specialists in plain English.
Be precise with numbers, never invent figures that are not given, and keep the
answer to 3 or 4 sentences.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// AIService writes a short narrative of a simulation summary. Without an API
// key, or when the model call fails, it returns a fixed template instead.
type AIService struct {
	models  contentGenerator
	model   string
	enabled bool
}

func NewAIService(ctx context.Context, apiKey, model string) (*AIService, error) {
	if model == "" {
		model = DefaultAIModel
	}
	if apiKey == "" {
		return &AIService{model: model}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return newAIService(client.Models, model), nil
}

func newAIService(models contentGenerator, model string) *AIService {
	return &AIService{models: models, model: model, enabled: true}
}

func (s *AIService) Enabled() bool {
	return s.enabled
}

// ExplainRun never fails; errors are logged and answered with the fallback.
func (s *AIService) ExplainRun(ctx context.Context, run domain.SimulationRun) string {
	if !s.enabled {
		return fallbackExplanation(run)
	}

	explanation, err := s.callLLM(ctx, buildPrompt(run))
	if err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("ai explanation failed, using fallback")
		return fallbackExplanation(run)
	}
	return explanation
}

func (s *AIService) callLLM(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()

	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	})
	if err != nil {
		return "", errors.Wrapf(err, "generate content with %s", s.model)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("no response from model")
	}
	return text, nil
}

func buildPrompt(run domain.SimulationRun) string {
	s := run.Summary
	return fmt.Sprintf(`Explain this loan portfolio loss simulation.

PORTFOLIO:
- Loans: %d
- Total exposure: %s

RESULTS OVER %d SIMULATED SCENARIOS:
- Mean loss: %s
- Median loss: %s
- Standard deviation: %s
- Minimum loss: %s
- Maximum loss: %s
- Value at Risk 95%%: %s
- Value at Risk 99%%: %s

Describe what a typical year looks like, how bad the tail is compared to the
mean, and what share of the total exposure is at risk at the 99%% level.`,
		run.LoanCount, report.FormatCurrency(run.TotalExposure),
		s.NumSimulations,
		report.FormatCurrency(s.MeanLoss), report.FormatCurrency(s.MedianLoss),
		report.FormatCurrency(s.StdLoss), report.FormatCurrency(s.MinLoss),
		report.FormatCurrency(s.MaxLoss), report.FormatCurrency(s.VaR95),
		report.FormatCurrency(s.VaR99))
}

func fallbackExplanation(run domain.SimulationRun) string {
	s := run.Summary
	text := fmt.Sprintf("Across %d simulated scenarios the portfolio of %d loans loses %s on average (median %s). "+
		"In 95%% of scenarios the loss stays at or below %s, and in 99%% at or below %s.",
		s.NumSimulations, run.LoanCount,
		report.FormatCurrency(s.MeanLoss), report.FormatCurrency(s.MedianLoss),
		report.FormatCurrency(s.VaR95), report.FormatCurrency(s.VaR99))
	if run.TotalExposure > 0 {
		text += fmt.Sprintf(" That is %.1f%% of the %s total exposure at the 99%% level.",
			s.VaR99/run.TotalExposure*100, report.FormatCurrency(run.TotalExposure))
	}
	return text
}
