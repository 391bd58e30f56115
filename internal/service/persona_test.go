package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name            string
		template        string
		vars            map[string]string
		expected        string
		expectedMissing []string
	}{
		{
			name:     "no placeholders",
			template: "You are a helpful assistant.",
			vars:     nil,
			expected: "You are a helpful assistant.",
		},
		{
			name:     "simple substitution",
			template: "Hello {{name}}, welcome back.",
			vars:     map[string]string{"name": "Ada"},
			expected: "Hello Ada, welcome back.",
		},
		{
			name:     "whitespace inside braces",
			template: "Hello {{ name }}.",
			vars:     map[string]string{"name": "Ada"},
			expected: "Hello Ada.",
		},
		{
			name:            "missing variable left intact",
			template:        "Analyze {{topic}} for {{user_name}}.",
			vars:            map[string]string{"user_name": "Ada"},
			expected:        "Analyze {{topic}} for Ada.",
			expectedMissing: []string{"topic"},
		},
		{
			name:            "repeated missing reported once",
			template:        "{{x}} and {{x}} again",
			vars:            nil,
			expected:        "{{x}} and {{x}} again",
			expectedMissing: []string{"x"},
		},
		{
			name:     "empty value is a valid substitution",
			template: "prefix {{gap}} suffix",
			vars:     map[string]string{"gap": ""},
			expected: "prefix  suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered, missing := RenderTemplate(tt.template, tt.vars)
			assert.Equal(t, tt.expected, rendered)
			assert.Equal(t, tt.expectedMissing, missing)
		})
	}
}

func newPersonaService(t *testing.T) *PersonaService {
	t.Helper()
	return NewPersonaService(store.NewMemoryStore(), logger.NewNop())
}

func TestSeedBuiltinsIdempotent(t *testing.T) {
	svc := newPersonaService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedBuiltins(ctx))
	first, err := svc.List(ctx, "tenant-a")
	require.NoError(t, err)

	require.NoError(t, svc.SeedBuiltins(ctx))
	second, err := svc.List(ctx, "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
	assert.NotEmpty(t, first)
	for _, p := range first {
		assert.True(t, p.IsBuiltin)
	}
}

func TestBuiltinPersonaNotUpdatable(t *testing.T) {
	svc := newPersonaService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedBuiltins(ctx))
	personas, err := svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotEmpty(t, personas)

	_, err = svc.Update(ctx, "tenant-a", personas[0].ID, &model.UpdatePersonaRequest{
		Name: "hijacked",
	})
	assert.Error(t, err)
}

func TestPersonaCRUDAndRender(t *testing.T) {
	svc := newPersonaService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "tenant-a", &model.CreatePersonaRequest{
		Name:         "Tutor",
		SystemPrompt: "Teach {{subject}} at a {{level}} level.",
		Temperature:  0.4,
	})
	require.NoError(t, err)

	resp, err := svc.Render(ctx, "tenant-a", created.ID, &model.RenderPersonaRequest{
		Variables: map[string]string{"subject": "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Teach Go at a {{level}} level.", resp.SystemPrompt)
	assert.Equal(t, []string{"level"}, resp.Missing)

	// Personas are tenant-scoped.
	_, err = svc.Get(ctx, "tenant-b", created.ID)
	assert.Error(t, err)
}
