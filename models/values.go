package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Native keyword parameters of a clustering algorithm
// A Params value is created for every resolution and owned by its model
type Params map[string]any

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names, sorted
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String prints one "\tkey=value" line per parameter
func (p Params) String() string {
	lines := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		lines = append(lines, fmt.Sprintf("\t%s=%s", k, formatValue(p[k])))
	}
	return strings.Join(lines, "\n")
}

// check fails on keys the algorithm does not know
func (p Params) check(model string, allowed ...string) error {
	known := map[string]struct{}{}
	for _, k := range allowed {
		known[k] = struct{}{}
	}
	for _, k := range p.Keys() {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("unknown parameter '%s' for %s, must be one of: %s", k, model, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Float returns a numeric parameter, missing and null values are 0
func (p Params) Float(key string) (float64, error) {
	v, err := p.OptionalFloat(key)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

// OptionalFloat returns nil for missing and null values
func (p Params) OptionalFloat(key string) (*float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	var f float64
	switch value := v.(type) {
	case float64:
		f = value
	case float32:
		f = float64(value)
	case int:
		f = float64(value)
	case int64:
		f = float64(value)
	case string:
		parsed, err := stringToFloat(value)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", key, err)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("parameter '%s' must be a number, got %v", key, v)
	}
	return &f, nil
}

// Int returns an integer parameter, missing and null values are 0
func (p Params) Int(key string) (int, error) {
	v, err := p.OptionalInt(key)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

// OptionalInt returns nil for missing and null values
func (p Params) OptionalInt(key string) (*int, error) {
	f, err := p.OptionalFloat(key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) || math.IsInf(*f, 0) {
		return nil, fmt.Errorf("parameter '%s' must be an integer, got %v", key, *f)
	}
	i := int(*f)
	return &i, nil
}

// Bool returns a boolean parameter, missing and null values are false
func (p Params) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, nil
	}
	switch value := v.(type) {
	case bool:
		return value, nil
	case string:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("parameter '%s' must be a boolean, got '%s'", key, value)
		}
		return b, nil
	}
	return false, fmt.Errorf("parameter '%s' must be a boolean, got %v", key, v)
}

// Str returns a string parameter, missing and null values are empty
func (p Params) Str(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string, got %v", key, v)
	}
	return s, nil
}

// truthy reports whether a command line value takes part in overriding
// Zero numbers, empty strings, false and nil never do
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case float32:
		return value != 0
	}
	return true
}

func stringToFloat(input string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	}
	result, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert '%s' to a number", input)
	}
	return result, nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "None"
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
