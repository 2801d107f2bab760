package classifier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tphakala/kws-go/internal/errors"
)

// ElementType is a tensor element type.
type ElementType string

// Tensor element types the pipeline can meet.
const (
	ElementInt8    ElementType = "int8"
	ElementUInt8   ElementType = "uint8"
	ElementFloat32 ElementType = "float32"
	ElementOther   ElementType = "other"
)

// ErrContractViolation is matched by every contract failure.
var ErrContractViolation = errors.NewStd("classifier contract violation")

// Contract describes a model's input and output tensors.
type Contract struct {
	InputDims  []int
	InputType  ElementType
	OutputLen  int
	OutputType ElementType
}

// String renders the contract for logs.
func (c Contract) String() string {
	dims := make([]string, len(c.InputDims))
	for i, d := range c.InputDims {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("input [%s] %s, output %d %s", strings.Join(dims, " "), c.InputType, c.OutputLen, c.OutputType)
}

// ValidateContract checks that the model takes one flattened feature window
// of sliceCount x sliceWidth int8 values and returns exactly categories
// scores. Scores may be uint8, or int8 which Classify rebases by +128.
func ValidateContract(c Contract, sliceCount, sliceWidth, categories int) error {
	var problems []string

	wantDims := []int{1, sliceCount * sliceWidth}
	if !slices.Equal(c.InputDims, wantDims) {
		problems = append(problems, fmt.Sprintf("input shape %v, want %v", c.InputDims, wantDims))
	}
	if c.InputType != ElementInt8 {
		problems = append(problems, fmt.Sprintf("input type %s, want %s", c.InputType, ElementInt8))
	}
	if c.OutputLen != categories {
		problems = append(problems, fmt.Sprintf("output length %d, want %d", c.OutputLen, categories))
	}
	if c.OutputType != ElementUInt8 && c.OutputType != ElementInt8 {
		problems = append(problems, fmt.Sprintf("output type %s, want %s", c.OutputType, ElementUInt8))
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.New(fmt.Errorf("%w: %s", ErrContractViolation, strings.Join(problems, "; "))).
		Component("classifier").
		Category(errors.CategoryClassifierContract).
		Priority(errors.PriorityCritical).
		Context("contract", c.String()).
		Context("slice_count", sliceCount).
		Context("slice_width", sliceWidth).
		Context("categories", categories).
		Build()
}
