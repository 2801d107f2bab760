// Package classifier wraps the keyword model behind a small interface and
// checks that the model matches the pipeline geometry before it is used.
package classifier

import "github.com/tphakala/kws-go/internal/logger"

// Classifier scores one flattened feature window. The returned slice holds
// one uint8 score per category and is owned by the caller.
type Classifier interface {
	Contract() Contract
	Classify(features []int8) ([]uint8, error)
	Close() error
}

// GetLogger returns the classifier logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classifier")
}
