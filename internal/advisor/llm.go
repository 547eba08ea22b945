package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	llmMaxTokens     = 512
	evaluatePrompt   = "You are a DeFi risk analyst. Evaluate whether a lending deposit is safe. Respond with ONLY a JSON object: {\"is_safe\": bool, \"reason\": string}. Reject protocols outside this trusted list: moonwell, aave-v3, compound-v3, spark. Reject APY above 50% or non-positive. Reject non-positive amounts."
	recommendPrompt  = "You are a DeFi yield analyst. Given a JSON list of lending pools and a deposit amount, pick the best pool weighing APY against TVL depth. Respond with ONLY a JSON object: {\"protocol\": string, \"token\": string, \"apy\": number, \"tvl\": number, \"is_safe\": true, \"reason\": string}. Only pick from the provided pools."
)

// LLMConfig holds settings for the LLM-backed advisor.
type LLMConfig struct {
	APIKey string
	Model  string
}

// LLMAdvisor asks a language model for a risk verdict and falls back to the
// deterministic rule engine whenever the model call or its output parsing
// fails. The rules also act as a floor: a model "safe" verdict cannot
// override a rule rejection.
type LLMAdvisor struct {
	client anthropic.Client
	model  anthropic.Model
	rules  *RuleAdvisor
	logger *slog.Logger
}

// NewLLMAdvisor creates an LLMAdvisor wrapping the given rule engine.
func NewLLMAdvisor(cfg LLMConfig, rules *RuleAdvisor, logger *slog.Logger) *LLMAdvisor {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &LLMAdvisor{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  anthropic.Model(model),
		rules:  rules,
		logger: logger,
	}
}

// Evaluate runs the rule engine first and only consults the model for
// transactions the rules already allow. The model can tighten the verdict
// but never loosen it.
func (a *LLMAdvisor) Evaluate(ctx context.Context, protocol string, amount float64, currentAPY float64) (domain.Verdict, error) {
	ruleVerdict, err := a.rules.Evaluate(ctx, protocol, amount, currentAPY)
	if err != nil {
		return domain.Verdict{}, err
	}
	if !ruleVerdict.Safe {
		return ruleVerdict, nil
	}

	question := fmt.Sprintf("protocol=%s amount=%.2f apy=%.2f%%", strings.ToLower(protocol), amount, currentAPY)

	text, err := a.ask(ctx, evaluatePrompt, question)
	if err != nil {
		a.logger.WarnContext(ctx, "llm evaluate failed, using rule verdict",
			slog.String("error", err.Error()))
		return ruleVerdict, nil
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(extractJSON(text)), &verdict); err != nil {
		a.logger.WarnContext(ctx, "llm verdict unparseable, using rule verdict",
			slog.String("error", err.Error()))
		return ruleVerdict, nil
	}
	if verdict.Reason == "" {
		return ruleVerdict, nil
	}
	return verdict, nil
}

// Recommend asks the model to pick a pool; on any failure, or if the model
// picks a pool that fails the rules, it defers to the rule engine.
func (a *LLMAdvisor) Recommend(ctx context.Context, pools []domain.Pool, amount float64) (domain.Recommendation, error) {
	if len(pools) == 0 {
		return a.rules.Recommend(ctx, pools, amount)
	}

	poolJSON, err := json.Marshal(pools)
	if err != nil {
		return a.rules.Recommend(ctx, pools, amount)
	}

	question := fmt.Sprintf("pools=%s amount=%.2f", poolJSON, amount)

	text, err := a.ask(ctx, recommendPrompt, question)
	if err != nil {
		a.logger.WarnContext(ctx, "llm recommend failed, using rule pick",
			slog.String("error", err.Error()))
		return a.rules.Recommend(ctx, pools, amount)
	}

	var rec domain.Recommendation
	if err := json.Unmarshal([]byte(extractJSON(text)), &rec); err != nil {
		a.logger.WarnContext(ctx, "llm recommendation unparseable, using rule pick",
			slog.String("error", err.Error()))
		return a.rules.Recommend(ctx, pools, amount)
	}

	v, err := a.rules.Evaluate(ctx, rec.Protocol, amount, rec.APY)
	if err != nil || !v.Safe {
		return a.rules.Recommend(ctx, pools, amount)
	}
	return rec, nil
}

func (a *LLMAdvisor) ask(ctx context.Context, system, question string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: llmMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("advisor: llm call: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("advisor: llm returned no text content")
}

// extractJSON strips any prose around the first top-level JSON object so a
// chatty model response still parses.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// Compile-time interface check.
var _ domain.Advisor = (*LLMAdvisor)(nil)
