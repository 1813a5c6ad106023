// Package validation wraps go-playground/validator with the identifier tags
// used across paperhub structs (doi, arxiv, bibcode, inspire, pluginid) and
// converts validator failures into domain.ValidationError values.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
)

// pluginIDPattern restricts plugin IDs to lower-case slugs.
var pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator instance with custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		mustRegister(v, "doi", func(fl validator.FieldLevel) bool {
			return identifier.IsDOI(fl.Field().String())
		})
		mustRegister(v, "arxiv", func(fl validator.FieldLevel) bool {
			return identifier.IsArxiv(fl.Field().String())
		})
		mustRegister(v, "bibcode", func(fl validator.FieldLevel) bool {
			return identifier.IsBibcode(fl.Field().String())
		})
		mustRegister(v, "inspire", func(fl validator.FieldLevel) bool {
			return identifier.IsInspire(fl.Field().String())
		})
		mustRegister(v, "pluginid", func(fl validator.FieldLevel) bool {
			return IsPluginID(fl.Field().String())
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validation: register " + tag + ": " + err.Error())
	}
}

// jsonFieldName reports fields by their JSON name so errors match API payloads.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// IsPluginID reports whether id is a well-formed plugin ID.
func IsPluginID(id string) bool {
	return pluginIDPattern.MatchString(id)
}

// Struct validates s and returns the first failure as a *domain.ValidationError.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(fieldPath(fe), message(fe))
	}
	return domain.NewValidationError("", err.Error())
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "doi", "arxiv", "bibcode", "inspire":
		return "is not a valid " + fe.Tag() + " identifier"
	case "pluginid":
		return "must be a lower-case slug"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
