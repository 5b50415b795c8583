package handler_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/handler"
)

type clockBody struct {
	Start string `json:"startTime" validate:"required,clock"`
}

func TestNewValidator_clockTag(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = handler.NewValidator() })

	assert.NoError(t, v.Struct(clockBody{Start: "09:30"}))
	assert.NoError(t, v.Struct(clockBody{Start: "09:30:00"}))

	for _, bad := range []string{"09:00:zz", "+9:00", "-0:00", "25:00"} {
		err := v.Struct(clockBody{Start: bad})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs, "input %q", bad)
		assert.Equal(t, "startTime", verrs[0].Field(), "input %q", bad)
		assert.Equal(t, "clock", verrs[0].Tag(), "input %q", bad)
	}
}
