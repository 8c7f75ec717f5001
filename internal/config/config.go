// Package config loads bitdex's JSON configuration: which partstore
// backend to use, column density thresholds, admission rate limits,
// and sampling defaults.
//
// Grounded on pkg/jsonconfig's Obj type: typed accessors that record
// errors as they're found rather than failing on the first one, with
// unknown-key detection folded into a final Validate() call — so a
// config file with three mistakes reports all three at once instead of
// one at a time across three runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Obj is a JSON configuration object. Accessors record errors on jc
// itself (under reserved keys) rather than returning them immediately,
// matching the teacher's accumulate-then-Validate contract.
type Obj map[string]any

const (
	knownKeysField = "_knownkeys"
	errorsField    = "_errors"
)

// Load reads and parses a JSON config file.
func Load(path string) (Obj, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return Obj(raw), nil
}

func (jc Obj) noteKnownKey(key string) {
	km, ok := jc[knownKeysField].(map[string]bool)
	if !ok {
		km = make(map[string]bool)
		jc[knownKeysField] = km
	}
	km[key] = true
}

func (jc Obj) appendError(err error) {
	if existing, ok := jc[errorsField].([]error); ok {
		jc[errorsField] = append(existing, err)
	} else {
		jc[errorsField] = []error{err}
	}
}

// RequiredString returns a required string field, recording an error
// if it is missing or the wrong type.
func (jc Obj) RequiredString(key string) string { return jc.string(key, nil) }

// OptionalString returns a string field or def if absent.
func (jc Obj) OptionalString(key, def string) string { return jc.string(key, &def) }

func (jc Obj) string(key string, def *string) string {
	jc.noteKnownKey(key)
	v, ok := jc[key]
	if !ok {
		if def != nil {
			return *def
		}
		jc.appendError(fmt.Errorf("missing required config key %q (string)", key))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a string, not %T", key, v))
		return ""
	}
	return s
}

// RequiredFloat returns a required numeric field.
func (jc Obj) RequiredFloat(key string) float64 { return jc.float(key, nil) }

// OptionalFloat returns a numeric field or def if absent.
func (jc Obj) OptionalFloat(key string, def float64) float64 { return jc.float(key, &def) }

func (jc Obj) float(key string, def *float64) float64 {
	jc.noteKnownKey(key)
	v, ok := jc[key]
	if !ok {
		if def != nil {
			return *def
		}
		jc.appendError(fmt.Errorf("missing required config key %q (number)", key))
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a number, not %T", key, v))
		return 0
	}
	return f
}

// OptionalInt returns an integer field or def if absent.
func (jc Obj) OptionalInt(key string, def int) int {
	return int(jc.OptionalFloat(key, float64(def)))
}

// OptionalBool returns a boolean field or def if absent.
func (jc Obj) OptionalBool(key string, def bool) bool {
	jc.noteKnownKey(key)
	v, ok := jc[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a boolean, not %T", key, v))
		return def
	}
	return b
}

// RequiredObject returns a nested config object, recursively subject
// to the same known-key tracking.
func (jc Obj) RequiredObject(key string) Obj {
	jc.noteKnownKey(key)
	v, ok := jc[key]
	if !ok {
		jc.appendError(fmt.Errorf("missing required config key %q (object)", key))
		return Obj{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be an object, not %T", key, v))
		return Obj{}
	}
	return Obj(m)
}

// OptionalArray returns a list field, or nil if absent.
func (jc Obj) OptionalArray(key string) []any {
	jc.noteKnownKey(key)
	v, ok := jc[key]
	if !ok {
		return nil
	}
	a, ok := v.([]any)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be an array, not %T", key, v))
		return nil
	}
	return a
}

func (jc Obj) lookForUnknownKeys() {
	known, _ := jc[knownKeysField].(map[string]bool)
	for k := range jc {
		if known[k] {
			continue
		}
		if strings.HasPrefix(k, "_") {
			continue
		}
		jc.appendError(fmt.Errorf("unknown config key %q", k))
	}
}

// Validate reports every accumulated error, plus any key nobody read.
// Call it once after the accessor calls for a given Obj are done.
func (jc Obj) Validate() error {
	jc.lookForUnknownKeys()
	errs, ok := jc[errorsField].([]error)
	if !ok || len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("multiple config errors: %s", strings.Join(msgs, "; "))
}
