package energy_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/MrWong99/echoscribe/pkg/capability/diarize/energy"
)

const rate = 16000

// pcmOf returns silent 16-bit PCM of duration d.
func pcmOf(d time.Duration) []byte {
	samples := int(int64(d) * rate / int64(time.Second))
	return make([]byte, samples*2)
}

// tone fills [start, end) with a square wave of the given amplitude.
func tone(pcm []byte, start, end time.Duration, amp int16) {
	from := int(int64(start) * rate / int64(time.Second))
	to := int(int64(end) * rate / int64(time.Second))
	for i := from; i < to && i*2+1 < len(pcm); i++ {
		v := amp
		if i%2 == 0 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
}

// TestDiarize_SplitsOnSilenceGaps verifies that speech separated by silence
// longer than the minimum gap produces separate turns.
func TestDiarize_SplitsOnSilenceGaps(t *testing.T) {
	pcm := pcmOf(10 * time.Second)
	tone(pcm, 1*time.Second, 3*time.Second, 12000)
	tone(pcm, 5*time.Second, 7*time.Second, 12000)

	d := energy.New(energy.WithThreshold(1000))
	turns, err := d.Diarize(context.Background(), pcm, rate)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2: %+v", len(turns), turns)
	}
	for i, turn := range turns {
		if turn.Start >= turn.End {
			t.Errorf("turn %d invalid: [%v, %v)", i, turn.Start, turn.End)
		}
		if turn.ClusterID == "" {
			t.Errorf("turn %d has empty cluster", i)
		}
	}
	// Same amplitude, same cluster.
	if turns[0].ClusterID != turns[1].ClusterID {
		t.Errorf("equal-energy turns got clusters %q and %q", turns[0].ClusterID, turns[1].ClusterID)
	}
}

// TestDiarize_ClustersByEnergyLevel verifies that clearly different energy
// levels land in different clusters.
func TestDiarize_ClustersByEnergyLevel(t *testing.T) {
	pcm := pcmOf(8 * time.Second)
	tone(pcm, 1*time.Second, 2*time.Second, 16000)
	tone(pcm, 4*time.Second, 5*time.Second, 2000)

	d := energy.New(energy.WithThreshold(1000))
	turns, err := d.Diarize(context.Background(), pcm, rate)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2: %+v", len(turns), turns)
	}
	if turns[0].ClusterID == turns[1].ClusterID {
		t.Errorf("loud and quiet turns share cluster %q", turns[0].ClusterID)
	}
}

// TestDiarize_Silence verifies the empty result for silent input.
func TestDiarize_Silence(t *testing.T) {
	d := energy.New(energy.WithThreshold(1000))
	turns, err := d.Diarize(context.Background(), pcmOf(3*time.Second), rate)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("len(turns) = %d, want 0", len(turns))
	}
}

// TestDiarize_InvalidSampleRate verifies input validation.
func TestDiarize_InvalidSampleRate(t *testing.T) {
	d := energy.New()
	if _, err := d.Diarize(context.Background(), pcmOf(time.Second), 0); err == nil {
		t.Error("Diarize(rate=0) succeeded, want error")
	}
}
