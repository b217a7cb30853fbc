package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/nectar/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "NECTAR_"

var durationType = reflect.TypeOf(time.Duration(0))

// binding ties an options field to its flag, TOML path and env variable.
type binding struct {
	name  string
	field reflect.Value
	flag  string
	toml  string
	env   string
}

func bindingsOf(v reflect.Value) []binding {
	t := v.Type()
	out := make([]binding, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		b := binding{
			name:  f.Name,
			field: v.Field(i),
			flag:  fieldNameToFlag(f.Name),
			toml:  f.Tag.Get("toml"),
		}
		if env := f.Tag.Get("env"); env != "" {
			b.env = EnvPrefix + env
		}
		out = append(out, b)
	}
	return out
}

// LoadConfig fills opts with precedence CLI args > env vars > config file.
// Flags the user set on cmd are left alone. A missing config file is not an
// error. Values of the wrong type are skipped and reported together in the
// returned error; every other field is still applied.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	bindings := bindingsOf(v)

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	tree, err := readTree(configPath(bindings))
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range bindings {
		if changed[b.flag] {
			continue
		}
		if b.toml != "" && tree != nil {
			if value := getNestedValue(tree, b.toml); value != nil {
				if err := setFieldValue(b.field, value); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", b.toml, err))
				}
			}
		}
		if b.env == "" {
			continue
		}
		if value := os.Getenv(b.env); value != "" {
			if err := setFieldValueFromString(b.field, value); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.env, err))
			}
		}
	}
	return errors.Join(errs...)
}

func configPath(bindings []binding) string {
	for _, b := range bindings {
		if b.name == "Config" && b.field.Kind() == reflect.String {
			return b.field.String()
		}
	}
	return ""
}

// readTree parses a TOML file into a generic tree. It returns nil without
// error when path is empty or does not exist.
func readTree(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return tree, nil
}

// fieldNameToFlag converts a struct field name to the flag name humacli
// derives from it: "LoggingLevel" -> "logging-level".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return data[head]
	}
	next, ok := data[head].(map[string]any)
	if !ok {
		return nil
	}
	return getNestedValue(next, rest)
}

func typeError(field reflect.Value, value any) error {
	return fmt.Errorf("cannot use %T value %v as %s", value, value, field.Type())
}

// setFieldValue assigns a decoded TOML value. Durations accept a Go
// duration string or an integer number of milliseconds.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		switch d := value.(type) {
		case string:
			return setFieldValueFromString(field, d)
		case int64:
			field.SetInt(d * int64(time.Millisecond))
			return nil
		}
		return typeError(field, value)
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
			return nil
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int64:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
			return nil
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
			return nil
		case int64:
			field.SetFloat(float64(f))
			return nil
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			break
		}
		slice := make([]string, 0, len(arr))
		for _, item := range arr {
			s, isString := item.(string)
			if !isString {
				return typeError(field, value)
			}
			slice = append(slice, s)
		}
		field.Set(reflect.ValueOf(slice))
		return nil
	}
	return typeError(field, value)
}

// setFieldValueFromString parses an env var into field. String slices are
// comma-separated.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return typeError(field, value)
		}
		var slice []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				slice = append(slice, part)
			}
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return typeError(field, value)
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of a config file. Keys other
// than level and format are per-module levels, so modules without a
// dedicated option can still be tuned. Returns defaults when the file is
// missing or unreadable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	tree, err := readTree(configPath)
	if err != nil || tree == nil {
		return cfg
	}
	table, ok := tree["logging"].(map[string]any)
	if !ok {
		return cfg
	}

	for key, raw := range table {
		value, isString := raw.(string)
		if !isString {
			continue
		}
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
