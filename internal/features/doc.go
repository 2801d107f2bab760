// Package features turns analysis windows into quantized log mel slices and
// keeps the most recent slices as the classifier input.
//
// One slice is computed per pipeline stride:
//
//	SampleRate:      16000
//	WindowSize:      480 (30 ms)
//	FFTSize:         512
//	SliceWidth:      40 mel bands, 125 Hz to 7500 Hz
//	SliceCount:      49 (about one second of audio)
//
// Slices are int8, matching the input tensor of quantized keyword models.
package features
