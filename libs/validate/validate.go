// Package validate decodes JSON request bodies and checks them against `validate` struct
// tags, returning 400 failures with a readable message.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	val "github.com/go-playground/validator/v10"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/wallclock"
)

var validate *val.Validate

var messages = map[string]string{
	"required":  "{field} is required",
	"gte":       "{field} must be greater than or equal to {param}",
	"lte":       "{field} must be less than or equal to {param}",
	"oneof":     "{field} must be one of {param}",
	"max":       "{field} must be at most {param}",
	"min":       "{field} must be at least {param}",
	"uuid":      "{field} must be a UUID",
	"datetime":  "{field} must match {param}",
	"wallclock": "{field} must be a time of day as HH:MM",
	"dive":      "{field} is invalid",
}

func init() {
	validate = val.New(val.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := validate.RegisterValidation("wallclock", func(fl val.FieldLevel) bool {
		_, err := wallclock.Parse(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
}

// Decode reads a JSON body into data and validates it.
func Decode[T any](r io.Reader, data *T) error {
	if err := json.NewDecoder(r).Decode(data); err != nil {
		return failure.BadRequest(fmt.Errorf("failed to decode request body: %w", err))
	}
	return Struct(data)
}

func Struct[T any](data *T) error {
	if err := validate.Struct(data); err != nil {
		return failure.BadRequestFromString(message(err))
	}
	return nil
}

// Var validates a single value, labelling failures with name.
func Var(name string, field any, tag string) error {
	if err := validate.Var(field, tag); err != nil {
		return failure.BadRequestFromString(name + " " + strings.TrimPrefix(message(err), "{field} "))
	}
	return nil
}

func message(err error) string {
	var valErrors val.ValidationErrors
	if !errors.As(err, &valErrors) {
		return err.Error()
	}
	for _, valErr := range valErrors {
		msg := messages[valErr.Tag()]
		if msg == "" {
			continue
		}
		field := valErr.Field()
		if field == "" {
			field = "{field}"
		}
		msg = strings.ReplaceAll(msg, "{field}", field)
		return strings.ReplaceAll(msg, "{param}", valErr.Param())
	}
	return valErrors.Error()
}
