package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

// Sized for admin bodies carrying up to 20k runes of knowledge text.
const maxBodyBytes = 256 << 10

var (
	propertyCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)
	languageCodeRe = regexp.MustCompile(`^[a-z]{2}$`)
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	mustRegister(v, "property_code", func(fl validator.FieldLevel) bool {
		return propertyCodeRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	mustRegister(v, "languages", func(fl validator.FieldLevel) bool {
		return validLanguages(fl.Field().String())
	})
	return v
}()

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

var tagMessages = map[string]string{
	"required":      "is required",
	"email":         "must be a valid email",
	"uuid":          "must be a uuid",
	"property_code": "must be 3-20 letters, digits, '-' or '_'",
	"languages":     "must be auto or a comma separated list of language codes",
}

// DecodeJSONBody decodes a single strict JSON object into dest and runs its
// validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	return ValidateStruct(dest)
}

// ValidateStruct runs tag validation on already decoded input.
func ValidateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min", "max":
		bound := map[string]string{"min": "at least", "max": "at most"}[fe.Tag()]
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	}
	return "is invalid"
}

func validLanguages(value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || normalized == "auto" {
		return true
	}
	for _, code := range strings.Split(normalized, ",") {
		if !languageCodeRe.MatchString(strings.TrimSpace(code)) {
			return false
		}
	}
	return true
}
