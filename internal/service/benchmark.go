package service

import (
	"fmt"
	"sort"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// modelBenchmarks is the static benchmark table backing the comparison
// dashboard. Prices are USD per million tokens.
var modelBenchmarks = []model.ModelBenchmark{
	{Model: "claude-3-5-sonnet-20241022", Provider: "anthropic", InputPrice: 3.00, OutputPrice: 15.00, ContextWindow: 200000, Reasoning: 92, Coding: 93, Speed: 78, Writing: 90},
	{Model: "claude-3-5-haiku-20241022", Provider: "anthropic", InputPrice: 0.80, OutputPrice: 4.00, ContextWindow: 200000, Reasoning: 80, Coding: 82, Speed: 94, Writing: 79},
	{Model: "claude-3-opus-20240229", Provider: "anthropic", InputPrice: 15.00, OutputPrice: 75.00, ContextWindow: 200000, Reasoning: 94, Coding: 89, Speed: 55, Writing: 93},
	{Model: "gpt-4o", Provider: "openai", InputPrice: 2.50, OutputPrice: 10.00, ContextWindow: 128000, Reasoning: 90, Coding: 88, Speed: 82, Writing: 88},
	{Model: "gpt-4o-mini", Provider: "openai", InputPrice: 0.15, OutputPrice: 0.60, ContextWindow: 128000, Reasoning: 76, Coding: 78, Speed: 95, Writing: 74},
	{Model: "gpt-4-turbo", Provider: "openai", InputPrice: 10.00, OutputPrice: 30.00, ContextWindow: 128000, Reasoning: 89, Coding: 86, Speed: 64, Writing: 86},
	{Model: "gpt-3.5-turbo", Provider: "openai", InputPrice: 0.50, OutputPrice: 1.50, ContextWindow: 16385, Reasoning: 65, Coding: 66, Speed: 96, Writing: 68},
}

// BenchmarkService answers benchmark, cost, and recommendation queries over
// the static model table.
type BenchmarkService struct {
	byModel map[string]model.ModelBenchmark
}

// NewBenchmarkService creates a benchmark service over the builtin table.
func NewBenchmarkService() *BenchmarkService {
	byModel := make(map[string]model.ModelBenchmark, len(modelBenchmarks))
	for _, b := range modelBenchmarks {
		byModel[b.Model] = b
	}
	return &BenchmarkService{byModel: byModel}
}

// Models returns all benchmark entries.
func (s *BenchmarkService) Models() []model.ModelBenchmark {
	out := make([]model.ModelBenchmark, len(modelBenchmarks))
	copy(out, modelBenchmarks)
	return out
}

// Lookup returns one model's benchmark entry.
func (s *BenchmarkService) Lookup(modelName string) (model.ModelBenchmark, error) {
	b, ok := s.byModel[modelName]
	if !ok {
		return model.ModelBenchmark{}, fmt.Errorf("unknown model %q", modelName)
	}
	return b, nil
}

// CalculateCost computes the exact USD cost of a token count:
// (inputPrice*in + outputPrice*out) / 1_000_000.
func (s *BenchmarkService) CalculateCost(modelName string, inputTokens, outputTokens int) (float64, error) {
	b, err := s.Lookup(modelName)
	if err != nil {
		return 0, err
	}
	return (b.InputPrice*float64(inputTokens) + b.OutputPrice*float64(outputTokens)) / 1_000_000, nil
}

func useCaseScore(b model.ModelBenchmark, useCase model.UseCase) int {
	switch useCase {
	case model.UseCaseCoding:
		return b.Coding
	case model.UseCaseWriting:
		return b.Writing
	case model.UseCaseAnalysis:
		return b.Reasoning
	case model.UseCaseChat:
		return b.Speed
	default:
		return int(b.AverageScore())
	}
}

// referenceCost is the cost of one million input plus one million output
// tokens, the workload used for budget comparisons.
func referenceCost(b model.ModelBenchmark) float64 {
	return b.InputPrice + b.OutputPrice
}

// Recommend ranks models for a use case, best score first with cost as the
// tiebreaker, dropping models over budget.
func (s *BenchmarkService) Recommend(req *model.RecommendRequest) []model.Recommendation {
	limit := req.Limit
	if limit <= 0 {
		limit = 3
	}

	recs := make([]model.Recommendation, 0, len(modelBenchmarks))
	for _, b := range modelBenchmarks {
		cost := referenceCost(b)
		if req.Budget > 0 && cost > req.Budget {
			continue
		}
		recs = append(recs, model.Recommendation{
			ModelBenchmark: b,
			Score:          useCaseScore(b, req.UseCase),
			ReferenceCost:  cost,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ReferenceCost < recs[j].ReferenceCost
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Compare summarizes a set of models side by side. Unknown names are
// ignored; an empty selection compares the whole table.
func (s *BenchmarkService) Compare(modelNames []string) *model.ComparisonResponse {
	var selected []model.ModelBenchmark
	if len(modelNames) == 0 {
		selected = s.Models()
	} else {
		for _, name := range modelNames {
			if b, ok := s.byModel[name]; ok {
				selected = append(selected, b)
			}
		}
	}

	resp := &model.ComparisonResponse{
		Models:        selected,
		AverageScores: make(map[string]float64, len(selected)),
	}

	var bestReasoning, bestCoding, bestSpeed, bestWriting int
	cheapest := -1.0
	for _, b := range selected {
		resp.AverageScores[b.Model] = b.AverageScore()
		if b.Reasoning > bestReasoning {
			bestReasoning = b.Reasoning
			resp.BestReasoning = b.Model
		}
		if b.Coding > bestCoding {
			bestCoding = b.Coding
			resp.BestCoding = b.Model
		}
		if b.Speed > bestSpeed {
			bestSpeed = b.Speed
			resp.BestSpeed = b.Model
		}
		if b.Writing > bestWriting {
			bestWriting = b.Writing
			resp.BestWriting = b.Model
		}
		if cost := referenceCost(b); cheapest < 0 || cost < cheapest {
			cheapest = cost
			resp.Cheapest = b.Model
		}
	}

	return resp
}
