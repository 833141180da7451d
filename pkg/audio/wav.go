package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// wavFormatPCM is the WAVE format tag for uncompressed PCM.
const wavFormatPCM = 1

var errNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// DecodeWAV reads a RIFF/WAVE stream and returns its audio as a mono 16-bit
// Clip. Stereo and multi-channel input is down-mixed to mono by averaging
// all channels per frame. Only uncompressed 16-bit PCM is supported.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	var (
		sampleRate int
		channels   int
		haveFmt    bool
	)

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.New("audio: missing data chunk")
			}
			return nil, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, errors.New("audio: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != wavFormatPCM || bits != 16 {
				return nil, fmt.Errorf("audio: unsupported format (tag=%d bits=%d), need 16-bit PCM", format, bits)
			}
			if channels <= 0 || sampleRate <= 0 {
				return nil, fmt.Errorf("audio: invalid fmt chunk (channels=%d rate=%d)", channels, sampleRate)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, errors.New("audio: data chunk before fmt chunk")
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("audio: read data chunk: %w", err)
			}
			return &Clip{PCM: downmix(data, channels), SampleRate: sampleRate}, nil

		default:
			// Skip unrelated chunks (LIST, fact, ...). Chunks are word-aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("audio: skip %s chunk: %w", id, err)
			}
		}
	}
}

// EncodeWAV writes pcm (mono 16-bit little-endian at sampleRate Hz) to w as
// a minimal RIFF/WAVE stream.
func EncodeWAV(w io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], 1) // mono
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 16)                   // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write WAV header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write WAV data: %w", err)
	}
	return nil
}

// downmix averages interleaved 16-bit channels into mono. A single-channel
// input is returned unchanged.
func downmix(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}
	frames := len(data) / (2 * channels)
	mono := make([]byte, frames*2)
	for i := range frames {
		var sum int
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += int(int16(binary.LittleEndian.Uint16(data[idx : idx+2])))
		}
		binary.LittleEndian.PutUint16(mono[i*2:i*2+2], uint16(int16(sum/channels)))
	}
	return mono
}
