package provider

// modelPricing holds per-million-token pricing for known models.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricing maps model identifiers to their token costs in USD.
var pricing = map[string]modelPricing{
	// Anthropic
	"claude-3-opus-20240229":     {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"claude-3-haiku-20240307":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	"claude-3-5-sonnet-20241022": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.0},
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-opus-4-1-20250805":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},

	// OpenAI
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.0},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4-turbo": {InputPerMillion: 10.0, OutputPerMillion: 30.0},
	"gpt-4":       {InputPerMillion: 30.0, OutputPerMillion: 60.0},
	"o1":          {InputPerMillion: 15.0, OutputPerMillion: 60.0},
	"o1-mini":     {InputPerMillion: 3.0, OutputPerMillion: 12.0},
	"o3-mini":     {InputPerMillion: 1.10, OutputPerMillion: 4.40},

	// Google Gemini
	"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.0},
	"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},

	// Alibaba DashScope (compatible mode)
	"qwen-max":   {InputPerMillion: 1.60, OutputPerMillion: 6.40},
	"qwen-plus":  {InputPerMillion: 0.40, OutputPerMillion: 1.20},
	"qwen-turbo": {InputPerMillion: 0.05, OutputPerMillion: 0.20},

	// DeepSeek
	"deepseek-chat":     {InputPerMillion: 0.27, OutputPerMillion: 1.10},
	"deepseek-reasoner": {InputPerMillion: 0.55, OutputPerMillion: 2.19},
}

// EstimateCost returns the estimated USD cost for the given model and usage.
// Returns 0 if the model is not in the pricing table.
func EstimateCost(model string, usage Usage) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	inputCost := float64(usage.InputTokens) / 1_000_000 * p.InputPerMillion
	outputCost := float64(usage.OutputTokens) / 1_000_000 * p.OutputPerMillion
	return inputCost + outputCost
}
