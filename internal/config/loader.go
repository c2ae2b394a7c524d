package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads the configuration from the process environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := Populate(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for main, panicking on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LookupFunc reports the value of an environment variable. os.LookupEnv
// is one.
type LookupFunc func(key string) (string, bool)

// Populate fills the fields of the struct dst points to from their
// `env`, `envAlt`, `default` and `required` tags, descending into nested
// structs. Every missing or malformed variable is reported, not only the
// first.
func Populate(dst any, lookup LookupFunc) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("populate: want pointer to struct, got %T", dst)
	}

	var errs []error
	populate(v.Elem(), lookup, &errs)
	return errors.Join(errs...)
}

func populate(v reflect.Value, lookup LookupFunc, errs *[]error) {
	for i := range v.NumField() {
		field, fv := v.Type().Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if fv.Kind() == reflect.Struct {
			populate(fv, lookup, errs)
			continue
		}

		tag, ok := parseEnvTag(field)
		if !ok {
			continue
		}
		raw, err := tag.value(lookup)
		if err != nil {
			*errs = append(*errs, err)
			continue
		}
		if raw == "" {
			continue
		}
		if err := decode(fv, raw); err != nil {
			*errs = append(*errs, fmt.Errorf("invalid value for %s=%q: %w", tag.names[0], raw, err))
		}
	}
}

// envTag is a field's variable names in lookup order plus its fallback.
type envTag struct {
	names    []string
	fallback string
	required bool
}

func parseEnvTag(f reflect.StructField) (envTag, bool) {
	name := f.Tag.Get("env")
	if name == "" {
		return envTag{}, false
	}

	tag := envTag{
		names:    []string{name},
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	if alt := f.Tag.Get("envAlt"); alt != "" {
		tag.names = append(tag.names, alt)
	}
	return tag, true
}

// value returns the first non-empty variable. An empty variable counts as
// unset.
func (t envTag) value(lookup LookupFunc) (string, error) {
	for _, name := range t.names {
		if v, _ := lookup(name); v != "" {
			return v, nil
		}
	}
	if t.required {
		return "", fmt.Errorf("required environment variable %s is not set", t.names[0])
	}
	return t.fallback, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func decode(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem())
		}
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
