// Package resolver composes a build plan from project settings and an
// environment tag.
package resolver

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/preactpack/internal/catalog"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
)

// ErrUnsupportedEnvironment indicates an environment tag other than development or production
var ErrUnsupportedEnvironment = errors.New("unsupported environment")

// UnsupportedEnvironmentError carries the rejected tag.
type UnsupportedEnvironmentError struct {
	Tag string
}

func (e *UnsupportedEnvironmentError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("%s: no environment given, expected %s or %s", ErrUnsupportedEnvironment, plan.Development, plan.Production)
	}
	return fmt.Sprintf("%s: %q, expected %s or %s", ErrUnsupportedEnvironment, e.Tag, plan.Development, plan.Production)
}

func (e *UnsupportedEnvironmentError) Unwrap() error { return ErrUnsupportedEnvironment }

// ParseEnvironment validates an environment tag.
func ParseEnvironment(tag string) (plan.Environment, error) {
	env := plan.Environment(tag)
	if !env.Valid() {
		return "", &UnsupportedEnvironmentError{Tag: tag}
	}
	return env, nil
}

// Resolve selects the catalog stages that apply to tag, applies each stage's
// environment overlay on top of its defaults and returns them in catalog order.
// The same settings and tag always produce an identical plan.
func Resolve(s *settings.Settings, tag string) (*plan.Plan, error) {
	env, err := ParseEnvironment(tag)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &settings.ValidationError{Field: "settings", Value: nil, Reason: "must be loaded before resolving"}
	}

	descriptors := catalog.AllStages()
	stages := make([]plan.Stage, 0, len(descriptors))
	seen := make(map[string]bool, len(descriptors))

	for _, d := range descriptors {
		if !d.Applicability.AppliesTo(env) {
			continue
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("stage %s declared twice in catalog", d.Name)
		}
		seen[d.Name] = true

		for _, key := range d.Requires {
			if !s.Has(key) {
				return nil, &settings.ValidationError{Field: key, Value: "", Reason: "required by stage " + d.Name}
			}
		}

		params := d.Defaults(s).Overlay(d.Overlays[env])
		stages = append(stages, plan.Stage{Name: d.Name, Params: params})
	}

	return plan.New(env, stages), nil
}
