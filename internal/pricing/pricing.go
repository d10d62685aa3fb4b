// Package pricing holds the static per-model rate table used to price
// comparison runs. Rates are USD per 1K tokens.
package pricing

// Rates contains the input and output token rates for one model.
type Rates struct {
	InputPer1K  float64 `json:"inputPer1K"`
	OutputPer1K float64 `json:"outputPer1K"`
}

// Cost returns the total cost in USD for the given token counts.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*r.InputPer1K + float64(outputTokens)/1000*r.OutputPer1K
}

// table maps model identifiers to their rates.
// Sources: provider pricing pages, checked January 2025.
var table = map[string]Rates{
	// OpenAI
	"gpt-4o":      {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo": {InputPer1K: 0.01, OutputPer1K: 0.03},

	// Anthropic
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-opus-20240229":     {InputPer1K: 0.015, OutputPer1K: 0.075},

	// Groq-hosted open models
	"llama-3.1-70b-versatile": {InputPer1K: 0.00059, OutputPer1K: 0.00079},
	"llama-3.1-8b-instant":    {InputPer1K: 0.00005, OutputPer1K: 0.00008},

	// DeepSeek
	"deepseek-chat": {InputPer1K: 0.00014, OutputPer1K: 0.00028},
}

// Lookup returns the rates for a model. Unknown models get the zero value,
// so an unpriced model simply contributes zero cost rather than failing.
func Lookup(modelID string) Rates {
	return table[modelID]
}
