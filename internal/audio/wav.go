package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// WAV is a decoded RIFF/WAVE file with its sample data left in the
// on-disk little-endian encoding.
type WAV struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	Data          []byte
}

// IsPCM16Mono16K reports whether the file already matches the recognizer's
// native input layout.
func (w *WAV) IsPCM16Mono16K() bool {
	return w.AudioFormat == formatPCM &&
		w.Channels == Channels &&
		w.SampleRate == SampleRate &&
		w.BitsPerSample == BitsPerSample
}

func (w *WAV) Describe() string {
	return fmt.Sprintf("format=%d channels=%d rate=%d bits=%d", w.AudioFormat, w.Channels, w.SampleRate, w.BitsPerSample)
}

func ReadWAV(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

// DecodeWAV walks the RIFF chunk list, keeping the first fmt and data chunks.
func DecodeWAV(r io.ReadSeeker) (*WAV, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return nil, fmt.Errorf("read wav header: %w", err)
	}

	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, ErrInvalidWAV
	}

	var (
		out        WAV
		dataOffset int64
		dataSize   uint32
		hasFmt     bool
		hasData    bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		chunkStart, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("seek wav chunk start: %w", err)
		}

		// chunks are word aligned
		skip := int64(chunkSize)
		if chunkSize%2 != 0 {
			skip++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, ErrInvalidWAV
			}

			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read wav fmt chunk: %w", err)
			}

			out.AudioFormat = binary.LittleEndian.Uint16(buf[0:2])
			out.Channels = binary.LittleEndian.Uint16(buf[2:4])
			out.SampleRate = binary.LittleEndian.Uint32(buf[4:8])
			out.BitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			hasFmt = true

			if chunkSize%2 != 0 {
				if _, err := r.Seek(1, io.SeekCurrent); err != nil {
					return nil, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			if !hasData {
				dataOffset = chunkStart
				dataSize = chunkSize
				hasData = true
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("seek wav data chunk: %w", err)
			}
		default:
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return nil, ErrInvalidWAV
	}

	if err := validateFormat(out.AudioFormat, out.BitsPerSample); err != nil {
		return nil, err
	}

	if _, err := r.Seek(dataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek wav data offset: %w", err)
	}

	out.Data = make([]byte, dataSize)
	if _, err := io.ReadFull(r, out.Data); err != nil {
		return nil, fmt.Errorf("read wav data: %w", err)
	}

	return &out, nil
}

// WritePCM16WAV encodes mono 16-bit samples as a canonical 44-byte-header WAV.
func WritePCM16WAV(w io.Writer, samples []int16, sampleRate int) error {
	const fmtChunkSize = 16
	dataSize := len(samples) * 2
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(riffSize))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:], formatPCM)
	binary.LittleEndian.PutUint16(out[22:], Channels)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*Channels*2))
	binary.LittleEndian.PutUint16(out[32:], Channels*2)
	binary.LittleEndian.PutUint16(out[34:], BitsPerSample)

	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	off := 44
	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

func validateFormat(audioFormat, bitsPerSample uint16) error {
	switch audioFormat {
	case formatPCM:
		switch bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case formatIEEEFloat:
		switch bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}
