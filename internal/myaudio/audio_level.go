package myaudio

import (
	"encoding/binary"
	"math"
)

// AudioLevel is the loudness of one capture chunk.
type AudioLevel struct {
	Level    int     // 0-100, scaled from dBFS
	DBFS     float64 // RMS level relative to full scale
	Clipping bool
}

// CalculateAudioLevel computes the RMS level of little-endian 16-bit PCM and
// scales it to 0-100, pinning clipped chunks at 95 or above.
func CalculateAudioLevel(samples []byte) AudioLevel {
	sampleCount := len(samples) / 2
	if sampleCount == 0 {
		return AudioLevel{DBFS: math.Inf(-1)}
	}

	var sum float64
	clipping := false
	for i := 0; i+1 < len(samples); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(samples[i : i+2]))
		v := float64(sample)
		sum += v * v
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			clipping = true
		}
	}

	rms := math.Sqrt(sum / float64(sampleCount))
	db := 20 * math.Log10(rms/32768.0)

	// -60 dBFS maps to 0, -10 dBFS to 100
	scaled := (db + 60) * (100.0 / 50.0)
	if clipping {
		scaled = math.Max(scaled, 95)
	}
	scaled = math.Max(0, math.Min(100, scaled))

	return AudioLevel{
		Level:    int(scaled),
		DBFS:     db,
		Clipping: clipping,
	}
}
