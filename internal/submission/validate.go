package submission

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom tags used on the form payloads.
// It must run before any payload is bound.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.DateOnly, fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	// required_if accepts "   ", which the summary would then drop
	return v.RegisterValidation("offline_location", func(fl validator.FieldLevel) bool {
		kind := fl.Parent().FieldByName("Type")
		if !kind.IsValid() || kind.String() != string(InterviewOffline) {
			return true
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}
