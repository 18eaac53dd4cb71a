package analysis

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateConfig checks the validate tags of an analyzer or aggregator
// config and reports the first violation as a *ConfigError under name.
func ValidateConfig(name string, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field:  name + "." + fe.Field(),
			Reason: fmt.Sprintf("failed %q (value %v)", fe.ActualTag(), fe.Value()),
		}
	}
	return &ConfigError{Field: name, Reason: err.Error()}
}
