package transcribe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// readWAVSamples reads a 16-bit PCM mono RIFF/WAV file and returns its
// samples as float32 values in [-1, 1], the layout whisper.cpp consumes.
func readWAVSamples(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: read wav: %w", err)
	}
	pcm, err := wavData(data)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s: %w", path, err)
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// wavData locates the data chunk inside a RIFF/WAV container and verifies the
// format chunk describes 16-bit PCM.
func wavData(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}

	var data []byte
	sawFmt := false

	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			return nil, errors.New("truncated chunk")
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			bits := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("unsupported encoding (format %d, %d-bit); want 16-bit PCM", format, bits)
			}
			sawFmt = true
		case "data":
			data = b[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if !sawFmt {
		return nil, errors.New("missing fmt chunk")
	}
	if data == nil {
		return nil, errors.New("missing data chunk")
	}
	return data, nil
}
