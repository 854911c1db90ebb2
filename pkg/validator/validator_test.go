package validator

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Username string `binding:"required,min=3,max=30,alphanum_underscore"`
	Content  string `binding:"required,max=5"`
}

func TestFormatValidationError(t *testing.T) {
	require.NoError(t, RegisterCustomValidations())
	v := binding.Validator.Engine().(*validator.Validate)

	err := v.Struct(sampleRequest{Username: "a!", Content: "too long"})
	require.Error(t, err)

	msg := FormatValidationError(err)
	require.Contains(t, msg, "Username must be at least 3 characters")
	require.Contains(t, msg, "Content must be at most 5 characters")
}

func TestFormatValidationErrorPassthrough(t *testing.T) {
	require.Equal(t, "plain", FormatValidationError(errors.New("plain")))
}

func TestUsernameTag(t *testing.T) {
	require.NoError(t, RegisterCustomValidations())
	v := binding.Validator.Engine().(*validator.Validate)

	require.NoError(t, v.Struct(sampleRequest{Username: "ada_99", Content: "ok"}))
	require.Error(t, v.Struct(sampleRequest{Username: "ada lovelace", Content: "ok"}))
}
