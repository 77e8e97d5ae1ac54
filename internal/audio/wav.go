// Package audio wraps raw PCM returned by the synthesis providers in a WAV
// container.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Container parameters. These match the fixed output format of the Gemini
// TTS models; no resampling is done.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16

	headerSize = 44
	formatPCM  = 1
)

var (
	ErrNotWAV      = errors.New("not a RIFF/WAVE buffer")
	ErrNoDataChunk = errors.New("WAV buffer has no data chunk")
)

// Header describes the fields of a canonical PCM WAV header.
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// WrapPCM prepends a 44-byte RIFF header to 16-bit little-endian mono PCM.
func WrapPCM(pcm []byte) []byte {
	dataSize := len(pcm)
	blockAlign := Channels * BitsPerSample / 8
	byteRate := SampleRate * blockAlign

	wav := make([]byte, headerSize+dataSize)

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], formatPCM)
	binary.LittleEndian.PutUint16(wav[22:24], Channels)
	binary.LittleEndian.PutUint32(wav[24:28], SampleRate)
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], BitsPerSample)

	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[44:], pcm)

	return wav
}

// WriteWAV writes pcm to path as a playable WAV file.
func WriteWAV(path string, pcm []byte) error {
	if err := os.WriteFile(path, WrapPCM(pcm), 0o644); err != nil {
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	return nil
}

// ParseHeader decodes the fmt and data chunk sizes of a canonical WAV buffer.
func ParseHeader(wav []byte) (Header, error) {
	if len(wav) < headerSize || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Header{}, ErrNotWAV
	}
	if string(wav[36:40]) != "data" {
		return Header{}, ErrNoDataChunk
	}
	return Header{
		AudioFormat:   binary.LittleEndian.Uint16(wav[20:22]),
		Channels:      binary.LittleEndian.Uint16(wav[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(wav[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(wav[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(wav[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(wav[34:36]),
		DataSize:      binary.LittleEndian.Uint32(wav[40:44]),
	}, nil
}

// StripWAVHeader returns the payload of the first data chunk when b is a
// RIFF/WAVE buffer, and b unchanged otherwise. Cloud TTS LINEAR16 responses
// carry a header that would otherwise end up inside our own container.
func StripWAVHeader(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b, nil
	}
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if id == "data" {
			end := off + size
			if end > len(b) || size == 0 {
				end = len(b)
			}
			return b[off:end], nil
		}
		off += size + size%2
	}
	return nil, ErrNoDataChunk
}
