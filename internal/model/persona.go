package model

import (
	"time"

	"gorm.io/gorm"
)

// Persona is a named system-prompt bundle customizing assistant behavior.
// The prompt may contain {{placeholder}} variables substituted at render time.
type Persona struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string         `json:"tenant_id" gorm:"index"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	SystemPrompt string         `json:"system_prompt"`
	DefaultModel string         `json:"default_model,omitempty"`
	Temperature  float64        `json:"temperature"`
	Tags         []string       `json:"tags,omitempty" gorm:"serializer:json"`
	IsBuiltin    bool           `json:"is_builtin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// CreatePersonaRequest is the request to create a persona.
type CreatePersonaRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt"`
	DefaultModel string   `json:"default_model,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// UpdatePersonaRequest is the request to update a persona.
type UpdatePersonaRequest struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	DefaultModel string   `json:"default_model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// ListPersonasResponse is the response for listing personas.
type ListPersonasResponse struct {
	Personas []Persona `json:"personas"`
	Total    int       `json:"total"`
}

// RenderPersonaRequest supplies variables for template substitution.
type RenderPersonaRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// RenderPersonaResponse is the rendered system prompt.
type RenderPersonaResponse struct {
	SystemPrompt string   `json:"system_prompt"`
	Missing      []string `json:"missing_variables,omitempty"`
}
