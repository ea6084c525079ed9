// Package cost provides a workflow.CostTracker implementation backed by a
// static per-model pricing table, scoping its bookkeeping to the
// executor-id-scoped RecordUsage contract.
package cost

import (
	"strings"
	"sync"
	"time"
)

// ModelPricing holds USD price per million tokens, split by direction.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing is a static pricing table covering the common
// OpenAI/Anthropic/Google model families.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":              {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-sonnet-20240229":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.0-pro":             {InputPer1M: 0.50, OutputPer1M: 1.50},
}

// modelAliases maps a shortened, undated model name (matched
// case-insensitively) to its dated canonical key in defaultModelPricing.
var modelAliases = map[string]string{
	"claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
	"claude-3-opus":     "claude-3-opus-20240229",
	"claude-3-sonnet":   "claude-3-sonnet-20240229",
	"claude-3-haiku":    "claude-3-haiku-20240307",
	"gemini-pro":        "gemini-1.0-pro",
}

// Call records one priced model invocation.
type Call struct {
	ExecutorID       string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Timestamp        time.Time
}

// Tracker implements workflow.CostTracker, accumulating USD cost per call,
// per model, and per executor using a static pricing table. An unknown
// model is recorded at zero cost rather than rejected, since a workflow
// should never fail because of missing pricing data.
type Tracker struct {
	mu          sync.Mutex
	pricing     map[string]ModelPricing
	calls       []Call
	totalCost   float64
	costByModel map[string]float64
	promptTok   int
	completeTok int
	enabled     bool
}

// NewTracker creates a Tracker seeded with defaultModelPricing.
func NewTracker() *Tracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &Tracker{
		pricing:     pricing,
		costByModel: make(map[string]float64),
		enabled:     true,
	}
}

// RecordUsage implements workflow.CostTracker.
func (t *Tracker) RecordUsage(executorID, model string, promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	pricing := t.lookupPricing(model)
	costUSD := (float64(promptTokens)/1_000_000)*pricing.InputPer1M +
		(float64(completionTokens)/1_000_000)*pricing.OutputPer1M

	t.calls = append(t.calls, Call{
		ExecutorID:       executorID,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          costUSD,
		Timestamp:        time.Now(),
	})
	t.totalCost += costUSD
	t.costByModel[model] += costUSD
	t.promptTok += promptTokens
	t.completeTok += completionTokens
}

func (t *Tracker) lookupPricing(model string) ModelPricing {
	if p, ok := t.pricing[model]; ok {
		return p
	}
	key := strings.ToLower(model)
	if canonical, ok := modelAliases[key]; ok {
		if p, ok := t.pricing[canonical]; ok {
			return p
		}
	}
	return ModelPricing{}
}

// SetCustomPricing overrides or adds pricing for a model name.
func (t *Tracker) SetCustomPricing(model string, pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[model] = pricing
}

// TotalCost returns the accumulated USD cost across every recorded call.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// CostByModel returns the accumulated USD cost broken down by model name.
func (t *Tracker) CostByModel() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.costByModel))
	for k, v := range t.costByModel {
		out[k] = v
	}
	return out
}

// CallHistory returns every recorded call in invocation order.
func (t *Tracker) CallHistory() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// TokenUsage returns cumulative prompt and completion token counts.
func (t *Tracker) TokenUsage() (promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promptTok, t.completeTok
}

// Disable stops recording new usage; already-recorded totals are kept.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Enable resumes recording after Disable.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = true
}

// Reset clears all accumulated totals and history while keeping pricing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.totalCost = 0
	t.costByModel = make(map[string]float64)
	t.promptTok = 0
	t.completeTok = 0
}
