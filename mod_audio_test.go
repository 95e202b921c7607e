package tumble

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioServer_RecordsCuesWithoutDevice(t *testing.T) {
	audio := &AudioServer{}

	audio.PlayCue(CueFall)
	audio.PlayCue(CueWin)
	audio.PlayCue(CueRestart)

	assert.Equal(t, []CueKind{CueFall, CueWin, CueRestart}, audio.Recorded())

	// Recorded hands out a copy
	got := audio.Recorded()
	got[0] = CueWin
	assert.Equal(t, []CueKind{CueFall, CueWin, CueRestart}, audio.Recorded())
}

func TestAudioServer_StartLoopHeadless(t *testing.T) {
	audio := &AudioServer{}

	handle := audio.StartLoop(LoopRolling)
	require.NotNil(t, handle)
	assert.True(t, handle.Muted(), "loops start muted")

	handle.Unmute()
	assert.False(t, handle.Muted())
}

func TestLoopHandle_VolumeSurvivesMute(t *testing.T) {
	handle := &LoopHandle{muted: true}

	handle.SetVolume(0.7)
	assert.InDelta(t, 0.7, handle.Volume(), 1e-5)
	assert.True(t, handle.Muted())

	handle.Unmute()
	assert.InDelta(t, 0.7, handle.Volume(), 1e-5)

	// Clamped to [0, 1]
	handle.SetVolume(3)
	assert.Equal(t, float32(1), handle.Volume())
	handle.SetVolume(-2)
	assert.Equal(t, float32(0), handle.Volume())
}

func TestLoopReader_WrapsForever(t *testing.T) {
	r := &loopReader{pcm: []byte{1, 2, 3, 4}}

	buf := make([]byte, 6)
	n, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 1, 2}, buf)

	// Empty buffers end instead of spinning
	empty := &loopReader{}
	if _, err := empty.Read(buf); err != io.EOF {
		t.Errorf("empty loopReader returned %v, want io.EOF", err)
	}
}

func TestSynthBuffers(t *testing.T) {
	sweep := synthSweep(440, 110, 0.1)
	assert.Equal(t, int(0.1*audioSampleRate)*2, len(sweep))

	arp := synthArpeggio([]float64{523.25, 659.25}, 0.05)
	assert.Equal(t, 2*int(0.05*audioSampleRate)*2, len(arp))

	// The rumble loop is a whole number of base-frequency periods so the
	// seam is click-free: first and last samples land near the same phase
	rumble := synthRumble(1.0)
	require.NotEmpty(t, rumble)
	samplesPerPeriod := audioSampleRate / 60
	assert.Zero(t, (len(rumble)/2)%samplesPerPeriod)
}

func TestCueKindString(t *testing.T) {
	cases := map[CueKind]string{
		CueFall:     "fall",
		CueWin:      "win",
		CueRestart:  "restart",
		CueKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("CueKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
