package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/mission-control/internal/model"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/pkg/logger"
)

// placeholderPattern matches {{name}} template variables.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{name}} placeholders from vars and reports the
// names of placeholders with no value. Unresolved placeholders are left
// intact.
func RenderTemplate(template string, vars map[string]string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)

	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{} \t")
		if val, ok := vars[name]; ok {
			return val
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})

	return rendered, missing
}

// PersonaService handles persona operations.
type PersonaService struct {
	store  store.Store
	logger *logger.Logger
}

// NewPersonaService creates a new persona service.
func NewPersonaService(st store.Store, log *logger.Logger) *PersonaService {
	return &PersonaService{store: st, logger: log}
}

// builtinPersonas are seeded at startup and visible to every tenant.
var builtinPersonas = []model.Persona{
	{
		Name:         "General Assistant",
		Description:  "Balanced, helpful default persona",
		SystemPrompt: "You are a helpful assistant for {{user_name}}. Be concise and accurate.",
		DefaultModel: "claude-3-5-sonnet-20241022",
		Temperature:  0.7,
		Tags:         []string{"general"},
	},
	{
		Name:         "Code Reviewer",
		Description:  "Reviews code for correctness, style, and security",
		SystemPrompt: "You are an expert code reviewer. Focus on correctness first, then readability. Flag security issues explicitly.",
		DefaultModel: "claude-3-5-sonnet-20241022",
		Temperature:  0.2,
		Tags:         []string{"coding"},
	},
	{
		Name:         "Research Analyst",
		Description:  "Structured analysis with cited reasoning",
		SystemPrompt: "You are a research analyst. Structure answers as findings, evidence, and open questions about {{topic}}.",
		DefaultModel: "gpt-4o",
		Temperature:  0.5,
		Tags:         []string{"analysis"},
	},
	{
		Name:         "Creative Writer",
		Description:  "Long-form prose and narrative voice",
		SystemPrompt: "You are a creative writing partner. Match the user's tone and favor vivid, specific language.",
		DefaultModel: "claude-3-opus-20240229",
		Temperature:  0.9,
		Tags:         []string{"writing"},
	},
}

// SeedBuiltins inserts the builtin personas if they are not present.
func (s *PersonaService) SeedBuiltins(ctx context.Context) error {
	existing, err := s.store.ListPersonas(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		if p.IsBuiltin {
			have[p.Name] = true
		}
	}

	now := time.Now()
	for _, builtin := range builtinPersonas {
		if have[builtin.Name] {
			continue
		}
		p := builtin
		p.ID = uuid.Must(uuid.NewV7()).String()
		p.IsBuiltin = true
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := s.store.CreatePersona(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed persona %q: %w", p.Name, err)
		}
	}
	return nil
}

// Create creates a tenant-owned persona.
func (s *PersonaService) Create(ctx context.Context, tenantID string, req *model.CreatePersonaRequest) (*model.Persona, error) {
	now := time.Now()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	p := &model.Persona{
		ID:           uuid.Must(uuid.NewV7()).String(),
		TenantID:     tenantID,
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		DefaultModel: req.DefaultModel,
		Temperature:  temperature,
		Tags:         req.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreatePersona(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create persona: %w", err)
	}
	return p, nil
}

// Get retrieves a persona by ID.
func (s *PersonaService) Get(ctx context.Context, tenantID, id string) (*model.Persona, error) {
	return s.store.GetPersona(ctx, tenantID, id)
}

// List lists builtin personas plus the tenant's own.
func (s *PersonaService) List(ctx context.Context, tenantID string) ([]model.Persona, error) {
	return s.store.ListPersonas(ctx, tenantID)
}

// Update updates a tenant-owned persona.
func (s *PersonaService) Update(ctx context.Context, tenantID, id string, req *model.UpdatePersonaRequest) (*model.Persona, error) {
	p, err := s.store.GetPersona(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if p.IsBuiltin {
		return nil, store.ErrNotFound
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.SystemPrompt != "" {
		p.SystemPrompt = req.SystemPrompt
	}
	if req.DefaultModel != "" {
		p.DefaultModel = req.DefaultModel
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	p.UpdatedAt = time.Now()

	if err := s.store.UpdatePersona(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update persona: %w", err)
	}
	return p, nil
}

// Delete removes a tenant-owned persona.
func (s *PersonaService) Delete(ctx context.Context, tenantID, id string) error {
	return s.store.DeletePersona(ctx, tenantID, id)
}

// Render substitutes template variables into the persona's system prompt.
func (s *PersonaService) Render(ctx context.Context, tenantID, id string, req *model.RenderPersonaRequest) (*model.RenderPersonaResponse, error) {
	p, err := s.store.GetPersona(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	rendered, missing := RenderTemplate(p.SystemPrompt, req.Variables)
	return &model.RenderPersonaResponse{
		SystemPrompt: rendered,
		Missing:      missing,
	}, nil
}
