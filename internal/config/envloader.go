package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// MergeFromEnv overrides fields of cfg, a pointer to a struct, with the
// environment variables named by their `env` tags. Nested structs are
// walked. Unset or empty variables leave the field untouched.
func MergeFromEnv(cfg any) error {
	_, err := mergeEnv(reflect.ValueOf(cfg), os.LookupEnv)
	return err
}

// mergeEnv returns the names of the variables it applied.
func mergeEnv(v reflect.Value, lookup func(string) (string, bool)) ([]string, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil
	}

	var applied []string
	for i := 0; i < v.NumField(); i++ {
		field, meta := v.Field(i), v.Type().Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			nested, err := mergeEnv(field, lookup)
			if err != nil {
				return nil, err
			}
			applied = append(applied, nested...)
			continue
		}

		name := meta.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookup(name)
		if !ok || raw == "" {
			continue
		}

		if err := parseInto(field, raw); err != nil {
			return nil, fmt.Errorf("invalid value for %s (%s): %w", name, meta.Name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func parseInto(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}
