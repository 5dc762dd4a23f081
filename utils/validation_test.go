package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Query string  `validate:"required"`
	TopK  int     `validate:"required,gte=1,lte=50"`
	Score float64 `validate:"gte=0,lte=1"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := TestStruct{
			Query: "what is chunking",
			TopK:  5,
			Score: 0.3,
		}

		err := ValidateStruct(&s)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		s := TestStruct{
			TopK:  5,
			Score: 0.3,
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Query")
	})

	t.Run("top k out of range", func(t *testing.T) {
		s := TestStruct{
			Query: "query",
			TopK:  100,
			Score: 0.3,
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "TopK")
	})

	t.Run("score out of range", func(t *testing.T) {
		s := TestStruct{
			Query: "query",
			TopK:  5,
			Score: 1.5,
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Score")
	})
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		fieldName string
		wantError bool
	}{
		{
			name:      "non-empty value",
			value:     "test",
			fieldName: "field",
			wantError: false,
		},
		{
			name:      "empty value",
			value:     "",
			fieldName: "field",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(tt.value, tt.fieldName)
			if tt.wantError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.fieldName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		fieldName string
		min       int
		max       int
		wantError bool
	}{
		{
			name:      "within range",
			value:     "test",
			fieldName: "field",
			min:       1,
			max:       10,
			wantError: false,
		},
		{
			name:      "too short",
			value:     "a",
			fieldName: "field",
			min:       3,
			max:       10,
			wantError: true,
		},
		{
			name:      "too long",
			value:     "this is a very long string",
			fieldName: "field",
			min:       1,
			max:       10,
			wantError: true,
		},
		{
			name:      "no min constraint",
			value:     "",
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: false,
		},
		{
			name:      "no max constraint",
			value:     "very long string here that exceeds normal limits",
			fieldName: "field",
			min:       1,
			max:       0,
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStringLength(tt.value, tt.fieldName, tt.min, tt.max)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNumericRange(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		fieldName string
		min       float64
		max       float64
		wantError bool
	}{
		{
			name:      "int within range",
			value:     5,
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: false,
		},
		{
			name:      "int below min",
			value:     -5,
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: true,
		},
		{
			name:      "int above max",
			value:     15,
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: true,
		},
		{
			name:      "float within range",
			value:     5.5,
			fieldName: "field",
			min:       0.0,
			max:       10.0,
			wantError: false,
		},
		{
			name:      "int32 within range",
			value:     int32(5),
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: false,
		},
		{
			name:      "int64 within range",
			value:     int64(5),
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: false,
		},
		{
			name:      "invalid type",
			value:     "not a number",
			fieldName: "field",
			min:       0,
			max:       10,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNumericRange(tt.value, tt.fieldName, tt.min, tt.max)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOneOf(t *testing.T) {
	allowed := []string{"pdf", "txt", "md"}

	tests := []struct {
		name      string
		value     string
		fieldName string
		wantError bool
	}{
		{
			name:      "valid value",
			value:     "pdf",
			fieldName: "file_type",
			wantError: false,
		},
		{
			name:      "another valid value",
			value:     "md",
			fieldName: "file_type",
			wantError: false,
		},
		{
			name:      "invalid value",
			value:     "exe",
			fieldName: "file_type",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOneOf(tt.value, tt.fieldName, allowed)
			if tt.wantError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.fieldName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	t.Run("creates validation error with field details", func(t *testing.T) {
		s := TestStruct{
			TopK:  100,
			Score: 1.5,
		}

		err := ValidateStruct(&s)
		require.Error(t, err)

		validationErr, ok := err.(*ValidationError)
		require.True(t, ok)

		assert.Equal(t, "Validation failed", validationErr.Message)
		assert.NotEmpty(t, validationErr.Fields)
		assert.Contains(t, validationErr.Fields, "Query")
		assert.Contains(t, validationErr.Fields, "TopK")
		assert.Contains(t, validationErr.Fields, "Score")
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "Test validation error",
		Fields: map[string]string{
			"field1": "error1",
		},
	}

	assert.Equal(t, "Test validation error", err.Error())
}

func TestIsValidationError(t *testing.T) {
	t.Run("is validation error", func(t *testing.T) {
		err := &ValidationError{
			Message: "test",
			Fields:  map[string]string{},
		}

		assert.True(t, IsValidationError(err))
	})

	t.Run("is not validation error", func(t *testing.T) {
		err := assert.AnError

		assert.False(t, IsValidationError(err))
	})
}

func TestGetValidationFields(t *testing.T) {
	t.Run("gets fields from validation error", func(t *testing.T) {
		fields := map[string]string{
			"field1": "error1",
			"field2": "error2",
		}
		err := &ValidationError{
			Message: "test",
			Fields:  fields,
		}

		extracted := GetValidationFields(err)
		assert.Equal(t, fields, extracted)
	})

	t.Run("returns nil for non-validation error", func(t *testing.T) {
		err := assert.AnError

		extracted := GetValidationFields(err)
		assert.Nil(t, extracted)
	})
}
