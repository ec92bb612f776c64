package model

import (
	"encoding/json"
	"time"
)

// Known form plugins.
const (
	PluginGravityForms = "gravity-forms"
	PluginContactForm7 = "contact-form-7"
)

// Form is a registry entry for an external form on a client site.
// (ClientID, ExternalFormID, Plugin) is unique.
type Form struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	ExternalFormID string          `json:"form_id"`
	Name           string          `json:"form_name"`
	Plugin         string          `json:"form_plugin"`
	Schema         json.RawMessage `json:"form_schema,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Key returns the natural key of the form.
func (f *Form) Key() FormKey {
	return FormKey{ClientID: f.ClientID, ExternalFormID: f.ExternalFormID, Plugin: f.Plugin}
}

// FormKey identifies a form by its natural key.
type FormKey struct {
	ClientID       string
	ExternalFormID string
	Plugin         string
}

// FormOverwrite selects which columns an upsert refreshes on conflict.
type FormOverwrite uint8

// Overwrite flags.
const (
	OverwriteName FormOverwrite = 1 << iota
	OverwriteSchema
)

// Has reports whether the flag is set.
func (o FormOverwrite) Has(flag FormOverwrite) bool {
	return o&flag != 0
}
