package manifest

import "encoding/json"

// Question types with special handling.
const (
	TypeDomain   = "domain"
	TypePath     = "path"
	TypeUser     = "user"
	TypePassword = "password"
	TypeBoolean  = "boolean"
	TypeString   = "string"
	TypeNumber   = "number"
)

// Lifecycle script names. Only install questions are asked today.
const (
	ScriptInstall   = "install"
	ScriptUpgrade   = "upgrade"
	ScriptRemove    = "remove"
	ScriptChangeURL = "change_url"
	ScriptBackup    = "backup"
	ScriptRestore   = "restore"
)

// LocalizedText maps a locale to a text. A plain string decodes as English.
type LocalizedText map[string]string

// UnmarshalJSON accepts either an object or a plain string.
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = LocalizedText{"en": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = m
	return nil
}

// In returns the text for locale, falling back to English then to any entry.
func (t LocalizedText) In(locale string) string {
	if s, ok := t[locale]; ok {
		return s
	}
	if s, ok := t["en"]; ok {
		return s
	}
	for _, s := range t {
		return s
	}
	return ""
}

// Question is one argument a lifecycle script asks for.
type Question struct {
	Name     string        `json:"name"`
	Type     string        `json:"type,omitempty"`
	Ask      LocalizedText `json:"ask,omitempty"`
	Help     LocalizedText `json:"help,omitempty"`
	Example  string        `json:"example,omitempty"`
	Default  interface{}   `json:"default,omitempty"`
	Optional bool          `json:"optional,omitempty"`
	Choices  []string      `json:"choices,omitempty"`
}

// Remote records where a package was fetched from.
type Remote struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Revision  string `json:"revision,omitempty"`
	FetchedAt int64  `json:"fetched_at,omitempty"`
}

// Manifest is the canonical package description, whatever file it came from.
type Manifest struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     LocalizedText         `json:"description,omitempty"`
	Version         string                `json:"version,omitempty"`
	URL             string                `json:"url,omitempty"`
	License         string                `json:"license,omitempty"`
	Maintainer      interface{}           `json:"maintainer,omitempty"`
	MultiInstance   bool                  `json:"multi_instance"`
	PackagingFormat int                   `json:"packaging_format"`
	Services        []string              `json:"services,omitempty"`
	Requirements    map[string]string     `json:"requirements,omitempty"`
	Arguments       map[string][]Question `json:"arguments,omitempty"`

	// LastUpdate is a unix timestamp set by the fetcher.
	LastUpdate int64   `json:"lastUpdate,omitempty"`
	Remote     *Remote `json:"remote,omitempty"`
}

// InstallQuestions returns the questions of the install script.
func (m *Manifest) InstallQuestions() []Question {
	return m.Arguments[ScriptInstall]
}

// Revision returns the fetched revision, "?" when unknown.
func (m *Manifest) Revision() string {
	if m.Remote == nil || m.Remote.Revision == "" {
		return "?"
	}
	return m.Remote.Revision
}
