// Package audio wraps raw PCM returned by the speech model in a WAV container.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrEmptyPCM is returned when there are no samples to encode.
var ErrEmptyPCM = errors.New("audio: empty pcm data")

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// SpeechFormat is what the speech model emits.
var SpeechFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

func (f Format) blockAlign() int { return f.Channels * f.BitsPerSample / 8 }

func (f Format) byteRate() int { return f.SampleRate * f.blockAlign() }

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("audio: invalid format %+v", f)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("audio: unsupported bit depth %d", f.BitsPerSample)
	}
}

// DecodePCM decodes the base64 payload of an inline audio part.
func DecodePCM(encoded string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("audio: decode pcm: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyPCM
	}
	return pcm, nil
}

type header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WriteWAV writes a canonical 44-byte RIFF header followed by pcm.
// A trailing partial frame is dropped.
func WriteWAV(w io.Writer, pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return err
	}
	pcm = pcm[:len(pcm)-len(pcm)%f.blockAlign()]
	if len(pcm) == 0 {
		return ErrEmptyPCM
	}

	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.byteRate()),
		BlockAlign:    uint16(f.blockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("audio: write header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write samples: %w", err)
	}
	return nil
}

// EncodeWAV is WriteWAV into a fresh buffer.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAV(&buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Duration is the playback length of pcm.
func Duration(pcm []byte, f Format) time.Duration {
	if f.validate() != nil {
		return 0
	}
	frames := len(pcm) / f.blockAlign()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
