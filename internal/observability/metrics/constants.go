// Package metrics provides the Prometheus collectors for the keyword spotter.
package metrics

import "time"

// Status label values shared by the collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDropped = "dropped"
	StatusSkipped = "skipped"
)

// Pipeline stage label values.
const (
	StageCapture   = "capture"
	StageFeatures  = "features"
	StageInference = "inference"
	StageDetection = "detection"
	StageDelivery  = "delivery"
)

// ShutdownTimeout bounds the graceful shutdown of the metrics HTTP server.
const ShutdownTimeout = 5 * time.Second
