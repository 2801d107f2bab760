package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/kws-go/internal/errors"
)

func goodContract() Contract {
	return Contract{
		InputDims:  []int{1, 49 * 40},
		InputType:  ElementInt8,
		OutputLen:  4,
		OutputType: ElementUInt8,
	}
}

func TestValidateContract(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Contract)
		wantErr string
	}{
		{"matching model", func(*Contract) {}, ""},
		{"int8 output accepted", func(c *Contract) { c.OutputType = ElementInt8 }, ""},
		{"rank three input", func(c *Contract) { c.InputDims = []int{1, 49, 40} }, "input shape"},
		{"wrong input length", func(c *Contract) { c.InputDims = []int{1, 1960 + 40} }, "input shape"},
		{"float input", func(c *Contract) { c.InputType = ElementFloat32 }, "input type"},
		{"extra category", func(c *Contract) { c.OutputLen = 5 }, "output length"},
		{"float output", func(c *Contract) { c.OutputType = ElementFloat32 }, "output type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := goodContract()
			tt.mutate(&c)

			err := ValidateContract(c, 49, 40, 4)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, ErrContractViolation)
			assert.True(t, errors.IsCategory(err, errors.CategoryClassifierContract))
		})
	}
}

func TestValidateContractReportsEveryMismatch(t *testing.T) {
	c := Contract{InputDims: []int{1, 10}, InputType: ElementUInt8, OutputLen: 2, OutputType: ElementOther}

	err := ValidateContract(c, 49, 40, 4)
	require.Error(t, err)

	for _, part := range []string{"input shape", "input type", "output length", "output type"} {
		assert.Contains(t, err.Error(), part)
	}
}

func TestContractString(t *testing.T) {
	assert.Equal(t, "input [1 1960] int8, output 4 uint8", goodContract().String())
}

func TestOptimalThreads(t *testing.T) {
	assert.Equal(t, 1, OptimalThreads(1))

	auto := OptimalThreads(0)
	assert.Positive(t, auto)

	huge := OptimalThreads(1 << 20)
	assert.LessOrEqual(t, huge, 1<<20)
	assert.GreaterOrEqual(t, huge, auto)
}

func TestNewTFLiteClassifierMissingModel(t *testing.T) {
	_, err := NewTFLiteClassifier(t.TempDir()+"/absent.tflite", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}
