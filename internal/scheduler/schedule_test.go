package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/model"
)

func TestResolveSchedule(t *testing.T) {
	assert.Equal(t, "0 * * * *", ResolveSchedule("hourly"))
	assert.Equal(t, "0 0 * * *", ResolveSchedule("daily"))
	assert.Equal(t, "0 0 * * 0", ResolveSchedule("weekly"))
	assert.Equal(t, "0 0 1 * *", ResolveSchedule("monthly"))
	assert.Equal(t, "*/5 * * * *", ResolveSchedule("*/5 * * * *"))
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("hourly"))
	assert.NoError(t, ValidateSchedule("30 9 * * 1-5"))
	assert.Error(t, ValidateSchedule(""))
	assert.Error(t, ValidateSchedule("every tuesday"))
	assert.Error(t, ValidateSchedule("61 * * * *"))
}

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC) // a Thursday

	tests := []struct {
		schedule string
		expected time.Time
	}{
		{"hourly", time.Date(2026, 5, 14, 11, 0, 0, 0, time.UTC)},
		{"daily", time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"weekly", time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 5, 14, 10, 45, 0, 0, time.UTC)},
		{"0 9 * * 1", time.Date(2026, 5, 18, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			next, err := NextRun(tt.schedule, after)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestNextRunStrictlyAfter(t *testing.T) {
	// Exactly on the boundary: the next run is the following slot.
	onTheHour := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	next, err := NextRun("hourly", onTheHour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 14, 11, 0, 0, 0, time.UTC), next)
}

func TestRetryDelay(t *testing.T) {
	policy := model.RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   30 * time.Second,
		Multiplier:  2.0,
	}

	assert.Equal(t, 30*time.Second, retryDelay(policy, 1))
	assert.Equal(t, 60*time.Second, retryDelay(policy, 2))
	assert.Equal(t, 120*time.Second, retryDelay(policy, 3))

	flat := model.RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Second, Multiplier: 1.0}
	assert.Equal(t, 5*time.Second, retryDelay(flat, 3))
}
