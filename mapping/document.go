// Package mapping configures builders from declarative YAML documents.
//
// A document lists one section per (filter, entity) pair. Each section can
// ignore filter properties, remap them to other entity properties with a
// chosen comparison, switch their null policy and replace their predicate
// with a small text expression over f (the filter property value) and e (the
// entity property value):
//
//	filters:
//	  - filter: UserFilter
//	    entity: User
//	    ignore: [Debug]
//	    properties:
//	      - filter: MinAge
//	        entity: Age
//	        compare: lte
//	      - filter: Tag
//	        entity: Profile
//	        predicate: 'e.Tags != null && f == e.Primary'
package mapping

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/autofilter-go/errs"
)

const pkg = "mapping"

// Document is a parsed mapping file.
type Document struct {
	Filters []Section `yaml:"filters" validate:"required,dive"`
}

// Section configures the builder of one (filter, entity) pair. Type names
// are matched against the Go type name with or without its package
// qualifier.
type Section struct {
	// REQUIRED: filter type name, e.g. UserFilter.
	Filter string `yaml:"filter" validate:"required"`

	// REQUIRED: entity type name, e.g. User.
	Entity string `yaml:"entity" validate:"required"`

	// OPTIONAL: filter property paths to ignore.
	Ignore []string `yaml:"ignore" validate:"dive,required"`

	// OPTIONAL: explicit property maps, applied in order.
	Properties []Property `yaml:"properties" validate:"dive"`
}

// Property maps one filter property.
type Property struct {
	// REQUIRED: filter property path.
	Filter string `yaml:"filter" validate:"required"`

	// REQUIRED: entity property path.
	Entity string `yaml:"entity" validate:"required"`

	// OPTIONAL: eq (default), gt, gte, lt or lte.
	Compare string `yaml:"compare" validate:"omitempty,oneof=eq gt gte lt lte"`

	// OPTIONAL: ignore (default) skips null filter values, filter matches
	// entities whose property is null.
	WhenNull string `yaml:"when_null" validate:"omitempty,oneof=ignore filter"`

	// OPTIONAL: predicate text replacing the synthesized predicate.
	Predicate string `yaml:"predicate"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load parses and validates a YAML document. Unknown keys are rejected.
func Load(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.Missing(pkg, "document")
		}
		return nil, errs.Invalid(pkg, "failed to parse document: %v", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, errs.Invalid(pkg, "invalid document: %v", err)
	}
	return &doc, nil
}

// Section returns the section for the named pair.
func (d *Document) Section(filter, entity string) (*Section, bool) {
	for i := range d.Filters {
		s := &d.Filters[i]
		if s.Filter == filter && s.Entity == entity {
			return s, true
		}
	}
	return nil, false
}
