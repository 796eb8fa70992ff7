package moor

import (
	"fmt"
	"reflect"
	"strings"
)

// Requirement is an immutable resolution request: a closed union of
// acceptable target types, an optional discriminating name, an origin tag
// for diagnostics, and an optional default used when no definition,
// fallback, or other source can satisfy it.
//
// The zero Requirement has no target type and fails resolution with
// ErrNoTargetType; build requirements with Require or RequireOneOf, or
// let the call-site binder complete them from the parameter's declared
// type.
type Requirement struct {
	targets    []reflect.Type
	name       string
	origin     string
	dflt       any
	hasDefault bool
}

// RequireOption configures a Requirement at construction time.
type RequireOption func(*Requirement)

// Named sets the discriminating name. A requirement without a name means
// "no preference" and matches both named and unnamed definitions.
func Named(name string) RequireOption {
	return func(r *Requirement) {
		r.name = name
	}
}

// Origin tags the requirement with the call site it was declared at.
// Purely diagnostic; it shows up in error messages.
func Origin(origin string) RequireOption {
	return func(r *Requirement) {
		r.origin = origin
	}
}

// Default supplies a fallback value used when no definition matches and
// the fallback chain yields nothing. A nil default is a valid default;
// "no default" is tracked separately.
func Default(value any) RequireOption {
	return func(r *Requirement) {
		r.dflt = value
		r.hasDefault = true
	}
}

// TypeOf returns the reflect.Type for T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Require builds a requirement for a single target type.
//
//	req := moor.Require[*Database](moor.Named("primary"))
func Require[T any](opts ...RequireOption) Requirement {
	return RequireOneOf([]reflect.Type{TypeOf[T]()}, opts...)
}

// RequireOneOf builds a requirement whose target is a closed union of
// acceptable types. A definition satisfies the union if its produced
// type is assignable to any member.
func RequireOneOf(targets []reflect.Type, opts ...RequireOption) Requirement {
	req := Requirement{targets: targets}
	for _, opt := range opts {
		opt(&req)
	}

	return req
}

// Targets returns the acceptable target types.
func (r Requirement) Targets() []reflect.Type {
	return r.targets
}

// Name returns the discriminating name, or "" when unset.
func (r Requirement) Name() string {
	return r.name
}

// Origin returns the diagnostic origin tag.
func (r Requirement) Origin() string {
	return r.origin
}

// DefaultValue returns the default and whether one was set.
func (r Requirement) DefaultValue() (any, bool) {
	return r.dflt, r.hasDefault
}

// satisfiedBy reports whether a produced type is acceptable: reflexive
// subtyping against any union member. Assignability covers identical
// types and interface implementation.
func (r Requirement) satisfiedBy(produced reflect.Type) bool {
	if produced == nil {
		return false
	}

	for _, target := range r.targets {
		if target != nil && produced.AssignableTo(target) {
			return true
		}
	}

	return false
}

// completed clones the requirement with the target type and name filled
// in from a call-site parameter, for the fields the requirement left
// unset. Explicit type and name always survive completion.
func (r Requirement) completed(paramType reflect.Type, paramName string) Requirement {
	out := r
	if len(out.targets) == 0 && paramType != nil {
		out.targets = []reflect.Type{paramType}
	}

	if out.name == "" {
		out.name = paramName
	}

	return out
}

// String renders the requirement for diagnostics.
func (r Requirement) String() string {
	var b strings.Builder

	switch len(r.targets) {
	case 0:
		b.WriteString("<untyped>")
	case 1:
		b.WriteString(r.targets[0].String())
	default:
		names := make([]string, len(r.targets))
		for i, t := range r.targets {
			names[i] = t.String()
		}
		fmt.Fprintf(&b, "[%s]", strings.Join(names, "|"))
	}

	if r.name != "" {
		fmt.Fprintf(&b, " (name %q)", r.name)
	}

	if r.origin != "" {
		fmt.Fprintf(&b, " from %s", r.origin)
	}

	return b.String()
}
