// Package module defines the contribution schema a behavior module declares
// in its manifest: vocabulary verbs, explicit events, and hook definitions.
// Manifests are parsed into explicit typed structures at load time; the core
// never consumes loosely-typed payloads.
package module

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Invocation kinds accepted by the manifest's hook entries.
const (
	InvocationTurnPhase = "turn_phase"
	InvocationEntity    = "entity"
)

// ObjectRequired models a manifest field that may be absent, a boolean, or a
// free-form string hint ("what should I take?"). Absence means the verb
// imposes no object requirement.
type ObjectRequired struct {
	// Set reports whether the field was present at all.
	Set bool
	// Required is the boolean value when the field was a bool, or true when
	// the field was a non-empty string hint.
	Required bool
	// Hint is the prompt text when the field was given as a string.
	Hint string
}

// UnmarshalYAML accepts bool or string scalars and rejects anything else.
func (o *ObjectRequired) UnmarshalYAML(node *yaml.Node) error {
	o.Set = true

	var b bool
	if err := node.Decode(&b); err == nil {
		o.Required = b
		return nil
	}

	var s string
	if err := node.Decode(&s); err == nil {
		o.Required = s != ""
		o.Hint = s
		return nil
	}

	return fmt.Errorf("object_required must be a bool or a string, got %q", node.Tag)
}

// VerbEntry declares one vocabulary word, its synonyms, and the event the
// word (and every synonym) maps to.
type VerbEntry struct {
	Word           string         `yaml:"word"`
	Event          string         `yaml:"event,omitempty"`
	Synonyms       []string       `yaml:"synonyms,omitempty"`
	ObjectRequired ObjectRequired `yaml:"object_required,omitempty"`
}

// EventEntry explicitly declares an event, optionally binding it to a hook
// and naming a fallback event tried when no handler responds.
type EventEntry struct {
	Event       string `yaml:"event"`
	Description string `yaml:"description,omitempty"`
	Hook        string `yaml:"hook,omitempty"`
	Fallback    string `yaml:"fallback,omitempty"`
}

// HookEntry declares an extension point. After and Before are only
// meaningful for turn_phase hooks.
type HookEntry struct {
	HookID      string   `yaml:"hook_id"`
	Invocation  string   `yaml:"invocation"`
	After       []string `yaml:"after,omitempty"`
	Before      []string `yaml:"before,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Contribution is everything one behavior module declares in its manifest.
type Contribution struct {
	Verbs  []VerbEntry  `yaml:"verbs,omitempty"`
	Events []EventEntry `yaml:"events,omitempty"`
	Hooks  []HookEntry  `yaml:"hooks,omitempty"`
}

// ParseManifest decodes a manifest document. Unknown fields are rejected so
// an authoring typo surfaces at load instead of silently dropping data.
//
// Postcondition: returns a Contribution or a non-nil error; never both.
func ParseManifest(data []byte) (Contribution, error) {
	var c Contribution
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Contribution{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return c, nil
}

// LoadManifest reads and parses a manifest file.
//
// Precondition: path must be a readable YAML file.
func LoadManifest(path string) (Contribution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Contribution{}, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	c, err := ParseManifest(data)
	if err != nil {
		return Contribution{}, fmt.Errorf("manifest %q: %w", path, err)
	}
	return c, nil
}
