package models

import (
	"time"
)

// Persona is a simulated author. The free-text trait fields are consumed
// verbatim inside LLM prompts.
type Persona struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Karma        int       `json:"karma"`
	Personality  string    `json:"personality"`
	Interests    string    `json:"interests"`
	WritingStyle string    `json:"writing_style"`
	ImageURL     string    `json:"image_url,omitempty"`
	Order        *int      `json:"order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreatePersonaRequest struct {
	Username     string `json:"username"`
	Karma        int    `json:"karma"`
	Personality  string `json:"personality"`
	Interests    string `json:"interests"`
	WritingStyle string `json:"writing_style"`
	ImageURL     string `json:"image_url,omitempty"`
}

type UpdatePersonaRequest struct {
	Username     *string `json:"username,omitempty"`
	Karma        *int    `json:"karma,omitempty"`
	Personality  *string `json:"personality,omitempty"`
	Interests    *string `json:"interests,omitempty"`
	WritingStyle *string `json:"writing_style,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
	Order        *int    `json:"order,omitempty"`
}
