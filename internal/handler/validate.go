package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/timeslot"
)

// NewValidator returns the validator used for request bodies. Field names in
// messages follow the JSON tags, and "clock" checks "HH:mm" times.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	if err := validate.RegisterValidation("clock", clock); err != nil {
		panic(fmt.Sprintf("handler: register clock validation: %v", err))
	}
	validate.RegisterCustomTypeFunc(dateValuer, openapi_types.Date{})

	return validate
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func clock(fl validator.FieldLevel) bool {
	_, ok := timeslot.ToMinutes(fl.Field().String())
	return ok
}

// dateValuer lets "required" reject a zero date.
func dateValuer(field reflect.Value) interface{} {
	if d, ok := field.Interface().(openapi_types.Date); ok {
		if d.Time.IsZero() {
			return ""
		}
		return d.Format(openapi_types.DateFormat)
	}
	return nil
}
