// Package plan defines the resolved build plan handed to the bundler.
package plan

import (
	"maps"
	"slices"
)

// Environment is a build environment tag.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Environments lists the recognised environment tags.
func Environments() []Environment {
	return []Environment{Development, Production}
}

// Valid reports whether e is a recognised environment tag.
func (e Environment) Valid() bool {
	return e == Development || e == Production
}

func (e Environment) String() string { return string(e) }

// Stage is one resolved stage: its name and final parameters.
type Stage struct {
	Name   string `json:"name" yaml:"name"`
	Params Params `json:"params" yaml:"params"`
}

// Plan is an immutable, ordered list of resolved stages for one environment.
// The zero value is an empty plan.
type Plan struct {
	env    Environment
	stages []Stage
}

// New builds a plan from stages in execution order. The stages are copied, so
// later changes to the argument do not affect the plan.
func New(env Environment, stages []Stage) *Plan {
	p := &Plan{env: env, stages: make([]Stage, len(stages))}
	for i, s := range stages {
		p.stages[i] = Stage{Name: s.Name, Params: s.Params.Clone()}
	}
	return p
}

// Environment returns the environment the plan was resolved for.
func (p *Plan) Environment() Environment { return p.env }

// Stages returns a copy of the ordered stages.
func (p *Plan) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	for i, s := range p.stages {
		out[i] = Stage{Name: s.Name, Params: s.Params.Clone()}
	}
	return out
}

// Names returns the stage names in execution order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Stage returns a copy of the named stage.
func (p *Plan) Stage(name string) (Stage, bool) {
	idx := slices.IndexFunc(p.stages, func(s Stage) bool { return s.Name == name })
	if idx < 0 {
		return Stage{}, false
	}
	s := p.stages[idx]
	return Stage{Name: s.Name, Params: s.Params.Clone()}, true
}

// Has reports whether the named stage is part of the plan.
func (p *Plan) Has(name string) bool {
	return slices.ContainsFunc(p.stages, func(s Stage) bool { return s.Name == name })
}

// Document is the serialisable form of a plan.
type Document struct {
	Environment Environment `json:"environment" yaml:"environment"`
	Stages      []Stage     `json:"stages" yaml:"stages"`
}

// Document returns a copy of the plan suitable for encoding.
func (p *Plan) Document() Document {
	return Document{Environment: p.env, Stages: p.Stages()}
}

// Params maps parameter names to values. Values are strings, bools, ints,
// []int, []string, map[string]string or []map[string]string.
type Params map[string]any

// Clone returns a copy of p, including the slices and maps it holds.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Overlay returns a copy of p with every key of overlay replacing the value in
// p. Values are replaced whole; nested slices and maps are never merged.
func (p Params) Overlay(overlay Params) Params {
	out := p.Clone()
	if out == nil {
		out = Params{}
	}
	for k, v := range overlay {
		out[k] = cloneValue(v)
	}
	return out
}

func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Params) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p Params) Int(key string) int {
	v, _ := p[key].(int)
	return v
}

func (p Params) Ints(key string) []int {
	v, _ := p[key].([]int)
	return slices.Clone(v)
}

func (p Params) Strings(key string) []string {
	v, _ := p[key].([]string)
	return slices.Clone(v)
}

func (p Params) StringMap(key string) map[string]string {
	v, _ := p[key].(map[string]string)
	return maps.Clone(v)
}

func (p Params) StringMaps(key string) []map[string]string {
	v, _ := p[key].([]map[string]string)
	return cloneValue(v).([]map[string]string)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []int:
		return slices.Clone(t)
	case []string:
		return slices.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	case []map[string]string:
		if t == nil {
			return t
		}
		out := make([]map[string]string, len(t))
		for i, m := range t {
			out[i] = maps.Clone(m)
		}
		return out
	case Params:
		return t.Clone()
	}
	return v
}
