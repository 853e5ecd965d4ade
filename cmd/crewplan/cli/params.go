// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder lets a field type take over its own flag registration.
// When a struct field's type implements it, [BindFlags] calls AddFlags
// instead of reading tags. Option types whose defaults are computed,
// from the environment or a derived path, implement this.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams builds a command's flag set from its params struct.
// Fields opt in with a flag tag:
//
//	type claimParams struct {
//	    Agent string        `flag:"agent,a" desc:"acting agent"`
//	    Force bool          `flag:"force"   desc:"take over an active claim"`
//	    Stale time.Duration `flag:"stale"   desc:"reclaim threshold" default:"120m"`
//	}
//
// The flag tag holds the long name and an optional one-letter
// shorthand. desc supplies help text; default supplies the initial
// value, parsed per the field's type. Supported field types are
// string, bool, int, int64, float64, [time.Duration], and []string
// (default comma-separated).
//
// Struct fields implementing [FlagBinder] register through their own
// AddFlags; embedded structs without it are walked recursively. Tag
// mistakes are programming errors, so this panics where [BindFlags]
// would return them.
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag on flagSet for every tagged field of
// params, which must be a pointer to a struct. See [FlagsFromParams]
// for the tag grammar.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return walkFields(value.Elem(), flagSet)
}

func walkFields(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for i := range structType.NumField() {
		field := structType.Field(i)
		value := structValue.Field(i)

		if field.Type.Kind() == reflect.Struct {
			// Self-binding fields win over tag reflection. Interface()
			// on the address only works for exported fields.
			if field.IsExported() && value.CanAddr() {
				if binder, ok := value.Addr().Interface().(FlagBinder); ok {
					binder.AddFlags(flagSet)
					continue
				}
			}
			if field.Anonymous {
				if err := walkFields(value, flagSet); err != nil {
					return fmt.Errorf("embedded %s: %w", field.Name, err)
				}
				continue
			}
		}

		tag := field.Tag.Get("flag")
		if tag == "" {
			continue
		}
		if !value.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}

		name, shorthand, _ := strings.Cut(tag, ",")
		pointer := value.Addr().Interface()
		if raw := field.Tag.Get("default"); raw != "" {
			if err := seedDefault(pointer, raw); err != nil {
				return fmt.Errorf("field %s: default for --%s: %w", field.Name, name, err)
			}
		}
		if err := registerFlag(flagSet, pointer, name, shorthand, field.Tag.Get("desc")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// seedDefault parses raw into the field ahead of registration, which
// then treats the field's current value as the flag default. Types
// registerFlag rejects are left alone here so the error surfaces once.
func seedDefault(pointer any, raw string) error {
	var err error
	switch p := pointer.(type) {
	case *string:
		*p = raw
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *int:
		*p, err = strconv.Atoi(raw)
	case *int64:
		*p, err = strconv.ParseInt(raw, 10, 64)
	case *float64:
		*p, err = strconv.ParseFloat(raw, 64)
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	case *[]string:
		*p = strings.Split(raw, ",")
	}
	return err
}

// registerFlag adds the pflag entry for pointer, with the pointee's
// current value as the default shown in help output.
func registerFlag(flagSet *pflag.FlagSet, pointer any, name, shorthand, help string) error {
	switch p := pointer.(type) {
	case *string:
		flagSet.StringVarP(p, name, shorthand, *p, help)
	case *bool:
		flagSet.BoolVarP(p, name, shorthand, *p, help)
	case *int:
		flagSet.IntVarP(p, name, shorthand, *p, help)
	case *int64:
		flagSet.Int64VarP(p, name, shorthand, *p, help)
	case *float64:
		flagSet.Float64VarP(p, name, shorthand, *p, help)
	case *time.Duration:
		flagSet.DurationVarP(p, name, shorthand, *p, help)
	case *[]string:
		flagSet.StringSliceVarP(p, name, shorthand, *p, help)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", pointer, name)
	}
	return nil
}
