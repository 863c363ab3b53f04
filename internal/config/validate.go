package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"envbench/internal/client"
)

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validate runs tag validation and the semantic checks tags cannot express.
// All problems are reported together.
func validate(cfg *Config) error {
	var errs []error

	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Errorf("%s: failed %q check", fieldPath(fe.Namespace()), fe.Tag()))
		}
	}

	if n := cfg.Run.RepetitionCount(); n <= 0 {
		errs = append(errs, fmt.Errorf("run.repetitions must be positive, got %d", n))
	}
	if n := cfg.Run.AbortAfter(); n < 0 {
		errs = append(errs, fmt.Errorf("run.abort_threshold must be >= 0, got %d", n))
	}

	envNames := make(map[string]struct{}, len(cfg.Environments))
	for i, env := range cfg.Environments {
		if _, dup := envNames[env.Name]; dup && env.Name != "" {
			errs = append(errs, fmt.Errorf("environments[%d]: duplicate name %q", i, env.Name))
		}
		envNames[env.Name] = struct{}{}
		if env.BaseURL != "" {
			if err := client.ValidateURL(env.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("environments[%d].base_url: %w", i, err))
			}
		}
	}

	endpointNames := make(map[string]struct{}, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		if _, dup := endpointNames[ep.Name]; dup && ep.Name != "" {
			errs = append(errs, fmt.Errorf("endpoints[%d]: duplicate name %q", i, ep.Name))
		}
		endpointNames[ep.Name] = struct{}{}
		if ep.Path != "" && !strings.HasPrefix(ep.Path, "/") {
			errs = append(errs, fmt.Errorf("endpoints[%d].path: must start with /", i))
		}
	}

	for i, cmp := range cfg.Comparisons {
		for _, name := range []string{cmp.Baseline, cmp.Candidate} {
			if _, ok := envNames[name]; !ok && name != "" {
				errs = append(errs, fmt.Errorf("comparisons[%d]: unknown environment %q", i, name))
			}
		}
	}

	return errors.Join(errs...)
}

// fieldPath turns "Config.environments[0].name" into "environments[0].name".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}
