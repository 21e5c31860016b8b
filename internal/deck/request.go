package deck

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/llm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// WithDefaults fills in the provider when the caller left it empty.
func (r GenerationRequest) WithDefaults(defaultProvider llm.ProviderID) GenerationRequest {
	if r.ModelProvider == "" {
		r.ModelProvider = defaultProvider
	}
	return r
}

// SingleSlide reports whether the request asks for a one-slide structuring
// of pasted content.
func (r GenerationRequest) SingleSlide() bool {
	return r.HasUserContent && r.NumberOfSlides == 1
}

// Validate checks every documented constraint and names the first one
// violated in a ValidationError.
func (r GenerationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apperr.NewValidationError(describe(fieldErrs[0]))
		}
		return apperr.NewValidationError(err.Error())
	}
	if r.HasUserContent && strings.TrimSpace(r.UserContent) == "" {
		return apperr.NewValidationError("userContent is required when hasUserContent is true")
	}
	if r.SingleSlide() {
		return nil
	}
	if r.NumberOfSlides < MinSlides || r.NumberOfSlides > MaxSlides {
		return apperr.NewValidationError(fmt.Sprintf("numberOfSlides must be between %d and %d", MinSlides, MaxSlides))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
