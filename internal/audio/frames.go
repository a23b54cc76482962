package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// Native recognizer input layout: PCM16 little-endian, mono, 16 kHz.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16

	bytesPerFrame = BitsPerSample / 8
)

var ErrNoFrames = errors.New("audio buffer holds no complete pcm16 frame")

// FrameCount is the number of whole samples in an n-byte PCM16 buffer.
func FrameCount(n int) int {
	return n / bytesPerFrame
}

// ConvertPCM16 copies a little-endian PCM16 byte buffer into a frame buffer
// the recognizer owns. A trailing odd byte is dropped. The returned slice never
// aliases data, so callers may reuse their buffer as soon as this returns.
func ConvertPCM16(data []byte) ([]int16, error) {
	n := FrameCount(len(data))
	if n == 0 {
		return nil, ErrNoFrames
	}

	frames := make([]int16, n)
	for i := range frames {
		frames[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return frames, nil
}

// EncodePCM16 is the inverse of ConvertPCM16.
func EncodePCM16(frames []int16) []byte {
	out := make([]byte, len(frames)*bytesPerFrame)
	for i, s := range frames {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// FramesIn returns how many 16 kHz frames cover d.
func FramesIn(d time.Duration) int {
	return int(int64(SampleRate) * int64(d) / int64(time.Second))
}

// Duration returns the playback length of n frames.
func Duration(frames int) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
