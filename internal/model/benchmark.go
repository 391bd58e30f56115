package model

// UseCase is a benchmark recommendation category.
type UseCase string

const (
	UseCaseCoding   UseCase = "coding"
	UseCaseWriting  UseCase = "writing"
	UseCaseChat     UseCase = "chat"
	UseCaseAnalysis UseCase = "analysis"
)

// ModelBenchmark holds the static benchmark entry for one model. Prices are
// USD per million tokens.
type ModelBenchmark struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	InputPrice    float64 `json:"input_price"`
	OutputPrice   float64 `json:"output_price"`
	ContextWindow int     `json:"context_window"`

	// Capability scores, 0-100.
	Reasoning int `json:"reasoning"`
	Coding    int `json:"coding"`
	Speed     int `json:"speed"`
	Writing   int `json:"writing"`
}

// AverageScore is the mean of the capability scores.
func (b ModelBenchmark) AverageScore() float64 {
	return float64(b.Reasoning+b.Coding+b.Speed+b.Writing) / 4.0
}

// CostRequest asks for the exact cost of a token count against a model.
type CostRequest struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// CostResponse is the computed cost in USD.
type CostResponse struct {
	Model string  `json:"model"`
	Cost  float64 `json:"cost"`
}

// RecommendRequest asks for model recommendations for a use case.
type RecommendRequest struct {
	UseCase UseCase `json:"use_case"`
	// Budget is the maximum acceptable cost in USD for a reference workload
	// of one million input and one million output tokens. Zero means no cap.
	Budget float64 `json:"budget,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// Recommendation is one ranked model suggestion.
type Recommendation struct {
	ModelBenchmark
	Score         int     `json:"score"`
	ReferenceCost float64 `json:"reference_cost"`
}

// ComparisonResponse summarizes a set of models side by side.
type ComparisonResponse struct {
	Models        []ModelBenchmark   `json:"models"`
	AverageScores map[string]float64 `json:"average_scores"`
	BestReasoning string             `json:"best_reasoning"`
	BestCoding    string             `json:"best_coding"`
	BestSpeed     string             `json:"best_speed"`
	BestWriting   string             `json:"best_writing"`
	Cheapest      string             `json:"cheapest"`
}
