// Package fields holds the field configuration that drives the detail panels: which keys an
// entity exposes, how they are grouped, and which input control each one renders as.
package fields

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the presentation a field renders as.
type Kind string

const (
	KindText         Kind = "text"
	KindSingleSelect Kind = "single-select"
	KindMultiSelect  Kind = "multi-select"
)

// Field type names accepted in configuration files.
const (
	TypeText        = "text"
	TypeDate        = "date"
	TypeEmail       = "email"
	TypePhone       = "phone"
	TypeTextarea    = "textarea"
	TypeSelect      = "select"
	TypeMultiSelect = "multi-select"
)

var ErrNoOptions = errors.New("no options configured")

// Option is one selectable value. Multi-select values are stored in forms as a list of these.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type Field struct {
	Key         string   `yaml:"key" json:"key"`
	Label       string   `yaml:"label" json:"label"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
	OptionsRef  string   `yaml:"optionsRef,omitempty" json:"-"`
	Multi       bool     `yaml:"multi,omitempty" json:"multi,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
}

// Resolve picks the control for a field. An explicit multi flag or multi-select type wins,
// then any configured options (or an explicit select type) give a single-select, and
// everything else is free text.
func Resolve(f Field) (Kind, error) {
	switch {
	case f.Multi || f.Type == TypeMultiSelect:
		if len(f.Options) == 0 {
			return "", fmt.Errorf("field %s: %w", f.Key, ErrNoOptions)
		}
		return KindMultiSelect, nil
	case len(f.Options) > 0 || f.Type == TypeSelect:
		if len(f.Options) == 0 {
			return "", fmt.Errorf("field %s: %w", f.Key, ErrNoOptions)
		}
		return KindSingleSelect, nil
	default:
		return KindText, nil
	}
}

// Kind is Resolve for fields that already passed configuration loading.
func (f Field) Kind() Kind {
	kind, err := Resolve(f)
	if err != nil {
		return KindText
	}
	return kind
}

func (f Field) IsDate() bool {
	return f.Type == TypeDate
}

// Lookup finds the option displayed for a stored single-select id.
func (f Field) Lookup(id string) (Option, bool) {
	for _, option := range f.Options {
		if option.ID == id {
			return option, true
		}
	}
	return Option{}, false
}

type Section struct {
	Title     string  `yaml:"title" json:"title"`
	Collapsed bool    `yaml:"collapsed,omitempty" json:"collapsed"`
	Fields    []Field `yaml:"fields" json:"fields"`
}

// Config describes one entity's detail panel.
type Config struct {
	Entity string `yaml:"entity" json:"entity"`
	Table  string `yaml:"table" json:"table"`
	// QueryKey names the cached list query the entity's grid reads from.
	QueryKey string `yaml:"queryKey" json:"queryKey"`
	// Optimistic entities write saves into the cache before the backend confirms them.
	Optimistic bool      `yaml:"optimistic,omitempty" json:"optimistic"`
	Sections   []Section `yaml:"sections" json:"sections"`
}

// Fields flattens the sections in display order.
func (c *Config) Fields() []Field {
	var out []Field
	for _, section := range c.Sections {
		out = append(out, section.Fields...)
	}
	return out
}

func (c *Config) Field(key string) (Field, bool) {
	for _, section := range c.Sections {
		for _, field := range section.Fields {
			if field.Key == key {
				return field, true
			}
		}
	}
	return Field{}, false
}

// Keys lists every configured key in display order.
func (c *Config) Keys() []string {
	fields := c.Fields()
	keys := make([]string, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, field.Key)
	}
	return keys
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Entity) == "" {
		return errors.New("entity is required")
	}
	if strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("%s: table is required", c.Entity)
	}
	seen := map[string]struct{}{}
	for _, field := range c.Fields() {
		if field.Key == "" {
			return fmt.Errorf("%s: field without key", c.Entity)
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("%s: duplicate field %s", c.Entity, field.Key)
		}
		seen[field.Key] = struct{}{}
		if _, err := Resolve(field); err != nil {
			return fmt.Errorf("%s: %w", c.Entity, err)
		}
	}
	return nil
}
