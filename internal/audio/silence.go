package audio

import (
	"encoding/binary"
	"math"
)

// peakHeadroomDB lets isolated clicks exceed the RMS threshold.
const peakHeadroomDB = 6

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// Silent reports whether the metrics stay below thresholdDBFS.
func (m SilenceMetrics) Silent(thresholdDBFS float64) bool {
	if m.Samples == 0 {
		return true
	}
	return m.RMSdBFS <= thresholdDBFS && m.PeakdBFS <= thresholdDBFS+peakHeadroomDB
}

// IsSilentWAV reports whether the file at path stays below thresholdDBFS.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	w, err := ReadWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}
	return IsSilent(w, thresholdDBFS)
}

func IsSilent(w *WAV, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := Measure(w)
	if err != nil {
		return false, SilenceMetrics{}, err
	}
	return metrics.Silent(thresholdDBFS), metrics, nil
}

// Measure computes level metrics over every sample of every channel.
func Measure(w *WAV) (SilenceMetrics, error) {
	width, decode, err := sampleDecoder(w.AudioFormat, w.BitsPerSample)
	if err != nil {
		return SilenceMetrics{}, err
	}

	var m levelMeter
	for i := 0; i+width <= len(w.Data); i += width {
		m.add(decode(w.Data[i : i+width]))
	}
	return m.metrics(), nil
}

// MeasureFrames computes level metrics for converted PCM16 frames.
func MeasureFrames(frames []int16) SilenceMetrics {
	var m levelMeter
	for _, f := range frames {
		m.add(float64(f) / 32768.0)
	}
	return m.metrics()
}

type levelMeter struct {
	peak       float64
	sumSquares float64
	n          int64
}

func (m *levelMeter) add(v float64) {
	m.peak = math.Max(m.peak, math.Abs(v))
	m.sumSquares += v * v
	m.n++
}

func (m *levelMeter) metrics() SilenceMetrics {
	if m.n == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}
	return SilenceMetrics{
		RMSdBFS:  toDBFS(math.Sqrt(m.sumSquares / float64(m.n))),
		PeakdBFS: toDBFS(m.peak),
		Samples:  m.n,
	}
}

// sampleDecoder returns the byte width of one sample and a decoder that maps
// it to [-1, 1].
func sampleDecoder(audioFormat, bitsPerSample uint16) (int, func([]byte) float64, error) {
	if audioFormat == formatIEEEFloat {
		switch bitsPerSample {
		case 32:
			return 4, func(b []byte) float64 {
				return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			}, nil
		case 64:
			return 8, func(b []byte) float64 {
				return math.Float64frombits(binary.LittleEndian.Uint64(b))
			}, nil
		}
		return 0, nil, ErrUnsupportedWAV
	}

	switch bitsPerSample {
	case 8:
		return 1, func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }, nil
	case 16:
		return 2, func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) / 32768 }, nil
	case 24:
		return 3, func(b []byte) float64 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float64(v) / 8388608
		}, nil
	case 32:
		return 4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648 }, nil
	}
	return 0, nil, ErrUnsupportedWAV
}

func toDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
