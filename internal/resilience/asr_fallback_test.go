package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/echoscribe/pkg/capability/asr"
	"github.com/MrWong99/echoscribe/pkg/capability/asr/mock"
)

func buffersOf(sizes ...int) []asr.Buffer {
	out := make([]asr.Buffer, len(sizes))
	for i, s := range sizes {
		out[i] = asr.Buffer{PCM: make([]byte, s), SampleRate: 16000}
	}
	return out
}

func TestASRFallback_PrimaryServes(t *testing.T) {
	primary := &mock.Transcriber{TextFor: map[int]string{4: "primary text"}}
	secondary := &mock.Transcriber{}

	f := NewASRFallback(primary, "large", FallbackConfig{})
	f.AddFallback("small", secondary)

	texts, err := f.TranscribeBatch(context.Background(), buffersOf(4))
	if err != nil {
		t.Fatalf("TranscribeBatch() error = %v", err)
	}
	if len(texts) != 1 || texts[0] != "primary text" {
		t.Errorf("texts = %v, want primary result", texts)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary calls = %d, want 0", secondary.CallCount())
	}
}

func TestASRFallback_FailsOverPerBatch(t *testing.T) {
	primary := &mock.Transcriber{Err: errors.New("out of memory")}
	secondary := &mock.Transcriber{TextFor: map[int]string{4: "small model text"}}

	f := NewASRFallback(primary, "large", FallbackConfig{})
	f.AddFallback("small", secondary)

	texts, err := f.TranscribeBatch(context.Background(), buffersOf(4))
	if err != nil {
		t.Fatalf("TranscribeBatch() error = %v", err)
	}
	if texts[0] != "small model text" {
		t.Errorf("texts = %v, want fallback result", texts)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
}

func TestASRFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mock.Transcriber{Err: errors.New("out of memory")}
	secondary := &mock.Transcriber{}

	f := NewASRFallback(primary, "large", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("small", secondary)

	for range 3 {
		if _, err := f.TranscribeBatch(context.Background(), buffersOf(4)); err != nil {
			t.Fatalf("TranscribeBatch() error = %v", err)
		}
	}
	// Breaker opened after 2 failures; the third batch must not touch the
	// primary.
	if got := primary.CallCount(); got != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker open)", got)
	}
	if got := secondary.CallCount(); got != 3 {
		t.Errorf("secondary calls = %d, want 3", got)
	}
}

func TestASRFallback_AllFailed(t *testing.T) {
	primary := &mock.Transcriber{Err: errors.New("down")}
	f := NewASRFallback(primary, "large", FallbackConfig{})

	_, err := f.TranscribeBatch(context.Background(), buffersOf(4))
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("TranscribeBatch() error = %v, want ErrAllFailed", err)
	}
}
