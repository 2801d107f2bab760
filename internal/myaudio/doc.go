// Package myaudio moves 16-bit mono PCM from a capture source into the
// analysis path.
//
// A single CaptureTask goroutine reads fixed-size chunks from a Source and
// pushes them into an AudioRingBuffer. The pipeline goroutine drains the ring
// in stride-sized pieces and feeds a SlidingAudioWindow, which keeps the
// overlap between consecutive analysis windows. The ring is the only state
// shared between the two goroutines.
package myaudio
