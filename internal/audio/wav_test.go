package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWritePCM16WAVDecodes(t *testing.T) {
	t.Parallel()

	samples := sineSamples(800, 440, 0.5)
	var buf bytes.Buffer
	require.NoError(t, WritePCM16WAV(&buf, samples, SampleRate))

	w, err := DecodeWAV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, w.IsPCM16Mono16K())
	require.Len(t, w.Data, len(samples)*2)

	frames, err := ConvertPCM16(w.Data)
	require.NoError(t, err)
	require.Equal(t, samples, frames)
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WritePCM16WAV(&buf, []int16{7, 8}, SampleRate))
	raw := buf.Bytes()

	// splice an odd-sized LIST chunk between fmt and data
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	spliced := append(append(append([]byte{}, raw[:36]...), list...), raw[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:], uint32(len(spliced)-8))

	w, err := DecodeWAV(bytes.NewReader(spliced))
	require.NoError(t, err)
	frames, err := ConvertPCM16(w.Data)
	require.NoError(t, err)
	require.Equal(t, []int16{7, 8}, frames)
}

func TestDecodeWAVReportsLayout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WritePCM16WAV(&buf, []int16{1}, 44100))

	w, err := DecodeWAV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.False(t, w.IsPCM16Mono16K())
	require.Contains(t, w.Describe(), "rate=44100")
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeWAV(bytes.NewReader([]byte("RIFF")))
	require.ErrorIs(t, err, ErrInvalidWAV)

	_, err = DecodeWAV(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00WAVE")))
	require.ErrorIs(t, err, ErrInvalidWAV)
}
