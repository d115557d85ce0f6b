package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator. Field names in errors are
// the koanf keys, so "client.baseurl" rather than "Client.BaseURL".
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("httpurl", validateHTTPURL)
		validate = v
	})
	return validate
}

// Validate checks cfg and returns every problem as a *ConfigError, joined.
func Validate(cfg *Config) error {
	if err := validatorInstance().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		errs := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, toConfigError(fe))
		}
		return errors.Join(errs...)
	}

	if err := cfg.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

// validateHTTPURL accepts absolute http and https URLs with a host.
func validateHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// toConfigError converts a validator failure into actionable guidance.
func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())

	switch fe.Tag() {
	case "required", "required_if":
		return NewMissingFieldError(field, envVarName(field), field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, "must be a valid URL", nil)
	case "httpurl":
		return NewInvalidFieldError(field, "must be an absolute http(s) URL", nil)
	case "hostname_port":
		return NewInvalidFieldError(field, "must be host:port", nil)
	case "gt":
		return NewInvalidFieldError(field, "must be greater than "+fe.Param(), nil)
	case "gte":
		return NewInvalidFieldError(field, "must be at least "+fe.Param(), nil)
	case "lte":
		return NewInvalidFieldError(field, "must be at most "+fe.Param(), nil)
	default:
		return NewValidationError(field, "failed "+fe.Tag()+" validation")
	}
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func envVarName(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
