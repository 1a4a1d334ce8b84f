package model

import "time"

// Organization is the tenant whose intelligence pipeline runs. Its profile is
// injected as context into every reasoning request.
type Organization struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Industry    string    `json:"industry,omitempty" yaml:"industry"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Competitors []string  `json:"competitors,omitempty" yaml:"competitors"`
	Keywords    []string  `json:"keywords,omitempty" yaml:"keywords"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
