package energy_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed/energy"
)

const testRate = 16000

// tone returns d of a square wave with the given amplitude and period (in
// samples per half-cycle).
func tone(d time.Duration, amplitude int16, halfCycle int) []byte {
	samples := int(int64(d) * testRate / int64(time.Second))
	pcm := make([]byte, samples*2)
	for i := range samples {
		v := amplitude
		if (i/halfCycle)%2 == 0 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
	return pcm
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbed_Deterministic(t *testing.T) {
	e := energy.New()
	pcm := tone(time.Second, 8000, 16)

	a, err := e.Embed(context.Background(), pcm, testRate)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := e.Embed(context.Background(), pcm, testRate)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(a) != e.Dimensions() {
		t.Fatalf("len(vec) = %d, want %d", len(a), e.Dimensions())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vec[%d] differs between identical inputs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_SeparatesDistinctVoices(t *testing.T) {
	e := energy.New()

	// Loud and low-pitched versus quiet and high-pitched.
	low := tone(time.Second, 14000, 64)
	high := tone(time.Second, 2000, 4)

	lowVec, err := e.Embed(context.Background(), low, testRate)
	if err != nil {
		t.Fatalf("Embed(low) error = %v", err)
	}
	highVec, err := e.Embed(context.Background(), high, testRate)
	if err != nil {
		t.Fatalf("Embed(high) error = %v", err)
	}
	lowVec2, err := e.Embed(context.Background(), tone(2*time.Second, 14000, 64), testRate)
	if err != nil {
		t.Fatalf("Embed(low, longer) error = %v", err)
	}

	same := cosine(lowVec, lowVec2)
	diff := cosine(lowVec, highVec)
	if same <= diff {
		t.Errorf("cosine(same voice) = %.3f, cosine(different voice) = %.3f; want same > different", same, diff)
	}
	if same < 0.95 {
		t.Errorf("cosine(same voice, different length) = %.3f, want near 1", same)
	}
}

func TestEmbed_Normalised(t *testing.T) {
	e := energy.New()
	vec, err := e.Embed(context.Background(), tone(time.Second, 8000, 16), testRate)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("|vec|^2 = %f, want 1", sum)
	}
}

func TestEmbed_InvalidInput(t *testing.T) {
	e := energy.New()
	if _, err := e.Embed(context.Background(), tone(time.Second, 8000, 16), 0); err == nil {
		t.Error("Embed(sampleRate=0) error = nil, want error")
	}
	if _, err := e.Embed(context.Background(), nil, testRate); err == nil {
		t.Error("Embed(empty) error = nil, want error")
	}
}
