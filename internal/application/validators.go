package application

import (
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/treadpick/infrastructure/llm"
)

// NewValidator returns a validator with the custom tags used by Config.
//
//	modelspec  "provider/model" where provider is compiled in
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil function.
	_ = v.RegisterValidation("modelspec", validateModelSpec)
	return v
}

func validateModelSpec(fl validator.FieldLevel) bool {
	spec, err := llm.ParseSpec(fl.Field().String())
	if err != nil {
		return false
	}
	return slices.Contains(llm.RegisteredProviders(), spec.Provider)
}
