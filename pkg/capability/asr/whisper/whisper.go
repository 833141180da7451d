// Package whisper implements the asr.Transcriber capability using the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared across batches. Each
// inference creates a fresh whisper context — contexts are not thread-safe,
// but the model is.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MrWong99/echoscribe/pkg/capability/asr"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Transcriber satisfies asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

const defaultLanguage = "en"

// Transcriber runs whisper.cpp inference for ordered batches of audio
// buffers. Safe for concurrent use; each call creates its own context from
// the shared model.
type Transcriber struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "vi",
// "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// TranscribeBatch implements asr.Transcriber. Buffers are processed
// sequentially on the calling goroutine; a failure on any buffer fails the
// whole batch with a *asr.BatchError, matching the all-or-nothing contract.
func (t *Transcriber) TranscribeBatch(ctx context.Context, buffers []asr.Buffer) ([]string, error) {
	texts := make([]string, len(buffers))
	for i, buf := range buffers {
		if err := ctx.Err(); err != nil {
			return nil, &asr.BatchError{Size: len(buffers), Err: err}
		}
		text, err := t.infer(buf.PCM)
		if err != nil {
			return nil, &asr.BatchError{Size: len(buffers), Err: err}
		}
		texts[i] = text
	}
	return texts, nil
}

// infer converts PCM audio to float32, runs whisper.cpp inference using a
// fresh context, and returns the concatenated text.
func (t *Transcriber) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", t.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// silently ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
