package resilience

import (
	"context"

	"github.com/MrWong99/echoscribe/pkg/capability/asr"
)

// ASRFallback implements [asr.Transcriber] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker,
// so a primary that keeps failing whole batches (typically the large model
// exhausting accelerator memory) is bypassed in favour of a healthy fallback
// without aborting the run.
type ASRFallback struct {
	group *FallbackGroup[asr.Transcriber]
}

var _ asr.Transcriber = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Transcriber, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend. Fallbacks are
// tried in registration order after the primary.
func (f *ASRFallback) AddFallback(name string, t asr.Transcriber) {
	f.group.AddFallback(name, t)
}

// TranscribeBatch transcribes the batch on the first healthy backend. The
// scheduler's ordering contract is preserved because each backend returns
// texts positionally aligned with buffers.
func (f *ASRFallback) TranscribeBatch(ctx context.Context, buffers []asr.Buffer) ([]string, error) {
	return ExecuteWithResult(f.group, func(t asr.Transcriber) ([]string, error) {
		return t.TranscribeBatch(ctx, buffers)
	})
}
