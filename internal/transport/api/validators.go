package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// validateMaxBytes unlike max, which counts runes, limits the byte length of a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	param := fl.Param()
	maxBytes, err := strconv.Atoi(param)
	if err != nil {
		return false
	}

	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return len([]byte(str)) <= maxBytes
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validator registration: unexpected engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("max_bytes", validateMaxBytes); err != nil {
		return fmt.Errorf("validator registration: %s", err.Error())
	}
	return nil
}
