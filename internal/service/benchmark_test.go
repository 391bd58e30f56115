package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/model"
)

func TestCalculateCost(t *testing.T) {
	svc := NewBenchmarkService()

	tests := []struct {
		name         string
		model        string
		inputTokens  int
		outputTokens int
		expected     float64
	}{
		{
			name:         "sonnet small request",
			model:        "claude-3-5-sonnet-20241022",
			inputTokens:  1000,
			outputTokens: 2000,
			expected:     0.033,
		},
		{
			name:         "mini one million each",
			model:        "gpt-4o-mini",
			inputTokens:  1_000_000,
			outputTokens: 1_000_000,
			expected:     0.75,
		},
		{
			name:         "opus input only",
			model:        "claude-3-opus-20240229",
			inputTokens:  100_000,
			outputTokens: 0,
			expected:     1.5,
		},
		{
			name:         "zero tokens cost nothing",
			model:        "gpt-4o",
			inputTokens:  0,
			outputTokens: 0,
			expected:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := svc.CalculateCost(tt.model, tt.inputTokens, tt.outputTokens)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, cost, 1e-9)
		})
	}
}

func TestCalculateCostUnknownModel(t *testing.T) {
	svc := NewBenchmarkService()
	_, err := svc.CalculateCost("gpt-9000", 10, 10)
	assert.Error(t, err)
}

func TestRecommendRanksByScoreThenCost(t *testing.T) {
	svc := NewBenchmarkService()

	recs := svc.Recommend(&model.RecommendRequest{UseCase: model.UseCaseCoding, Limit: 10})
	require.NotEmpty(t, recs)

	for i := 1; i < len(recs); i++ {
		if recs[i-1].Score == recs[i].Score {
			assert.LessOrEqual(t, recs[i-1].ReferenceCost, recs[i].ReferenceCost)
		} else {
			assert.Greater(t, recs[i-1].Score, recs[i].Score)
		}
	}

	// Best coding model in the table.
	assert.Equal(t, "claude-3-5-sonnet-20241022", recs[0].Model)
}

func TestRecommendRespectsBudget(t *testing.T) {
	svc := NewBenchmarkService()

	recs := svc.Recommend(&model.RecommendRequest{
		UseCase: model.UseCaseCoding,
		Budget:  5.0,
		Limit:   10,
	})
	require.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.LessOrEqual(t, rec.ReferenceCost, 5.0)
	}
}

func TestRecommendDefaultLimit(t *testing.T) {
	svc := NewBenchmarkService()
	recs := svc.Recommend(&model.RecommendRequest{UseCase: model.UseCaseChat})
	assert.Len(t, recs, 3)
}

func TestCompare(t *testing.T) {
	svc := NewBenchmarkService()

	resp := svc.Compare([]string{"claude-3-5-sonnet-20241022", "gpt-4o-mini", "not-a-model"})
	assert.Len(t, resp.Models, 2)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.BestCoding)
	assert.Equal(t, "gpt-4o-mini", resp.BestSpeed)
	assert.Equal(t, "gpt-4o-mini", resp.Cheapest)
	assert.Contains(t, resp.AverageScores, "gpt-4o-mini")
}
