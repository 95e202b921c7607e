package tumble

import (
	"bytes"
	"io"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

const audioSampleRate = 44100

type CueKind int

const (
	CueFall CueKind = iota
	CueWin
	CueRestart
)

func (k CueKind) String() string {
	switch k {
	case CueFall:
		return "fall"
	case CueWin:
		return "win"
	case CueRestart:
		return "restart"
	}
	return "unknown"
}

type LoopKind int

const (
	LoopRolling LoopKind = iota
)

// AudioServer plays one-shot cues and looping sounds. In headless mode
// (no device, or audio disabled) it records what it was asked to play
// instead, which is what the tests assert against.
type AudioServer struct {
	ctx   *oto.Context
	ready chan struct{}

	mu       sync.Mutex
	recorded []CueKind
}

// LoopHandle controls one looping sound. Volume applies only while
// unmuted; mute pauses playback rather than zeroing volume so the loop
// costs nothing while the ball is airborne.
type LoopHandle struct {
	player *oto.Player

	mu     sync.Mutex
	muted  bool
	volume float32
}

type AudioModule struct {
	Disabled bool
}

func (m AudioModule) Install(app *App, cmd *Commands) {
	server := &AudioServer{}

	if !m.Disabled {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   audioSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			app.Logger().Warnf("audio device unavailable, running silent: %v", err)
		} else {
			server.ctx = ctx
			server.ready = ready
		}
	}

	app.addResources(server)
}

func (a *AudioServer) deviceReady() bool {
	if a.ctx == nil {
		return false
	}
	select {
	case <-a.ready:
		return true
	default:
		return false
	}
}

// PlayCue fires a one-shot sound. The player drains its buffer and is
// dropped; oto cleans it up once playback finishes.
func (a *AudioServer) PlayCue(kind CueKind) {
	a.mu.Lock()
	a.recorded = append(a.recorded, kind)
	a.mu.Unlock()

	if !a.deviceReady() {
		return
	}

	var pcm []byte
	switch kind {
	case CueFall:
		pcm = synthSweep(440, 110, 0.5)
	case CueWin:
		pcm = synthArpeggio([]float64{523.25, 659.25, 783.99, 1046.50}, 0.12)
	case CueRestart:
		pcm = synthSweep(220, 440, 0.15)
	}

	player := a.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
}

// StartLoop begins a looping sound, muted. Callers unmute on demand.
func (a *AudioServer) StartLoop(kind LoopKind) *LoopHandle {
	handle := &LoopHandle{muted: true}

	if !a.deviceReady() {
		return handle
	}

	var pcm []byte
	switch kind {
	case LoopRolling:
		pcm = synthRumble(1.0)
	}

	handle.player = a.ctx.NewPlayer(&loopReader{pcm: pcm})
	handle.player.SetVolume(0)
	handle.player.Play()
	return handle
}

// Recorded returns every cue played so far, in order.
func (a *AudioServer) Recorded() []CueKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CueKind, len(a.recorded))
	copy(out, a.recorded)
	return out
}

func (h *LoopHandle) Mute() {
	h.mu.Lock()
	h.muted = true
	h.mu.Unlock()
	if h.player != nil {
		h.player.SetVolume(0)
	}
}

func (h *LoopHandle) Unmute() {
	h.mu.Lock()
	h.muted = false
	volume := h.volume
	h.mu.Unlock()
	if h.player != nil {
		h.player.SetVolume(float64(volume))
	}
}

func (h *LoopHandle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *LoopHandle) SetVolume(volume float32) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	h.mu.Lock()
	h.volume = volume
	muted := h.muted
	h.mu.Unlock()
	if h.player != nil && !muted {
		h.player.SetVolume(float64(volume))
	}
}

func (h *LoopHandle) Volume() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// loopReader replays a PCM buffer forever.
type loopReader struct {
	pcm []byte
	off int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.pcm) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.pcm[r.off:])
	r.off = (r.off + n) % len(r.pcm)
	return n, nil
}

// The cues are synthesized rather than shipped as files, same as the
// level's procedural ball mesh.

func synthSweep(fromHz, toHz float64, seconds float64) []byte {
	samples := int(seconds * audioSampleRate)
	pcm := make([]byte, samples*2)
	phase := 0.0
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples)
		freq := fromHz + (toHz-fromHz)*t
		phase += 2 * math.Pi * freq / audioSampleRate
		envelope := 1.0 - t
		writeSample(pcm, i, math.Sin(phase)*envelope*0.6)
	}
	return pcm
}

func synthArpeggio(notes []float64, noteSeconds float64) []byte {
	noteSamples := int(noteSeconds * audioSampleRate)
	pcm := make([]byte, len(notes)*noteSamples*2)
	for n, freq := range notes {
		for i := 0; i < noteSamples; i++ {
			t := float64(i) / float64(noteSamples)
			envelope := math.Exp(-3 * t)
			v := math.Sin(2*math.Pi*freq*float64(i)/audioSampleRate) * envelope * 0.6
			writeSample(pcm, n*noteSamples+i, v)
		}
	}
	return pcm
}

// synthRumble layers detuned low sines into a rolling-surface drone.
// The buffer length is a whole number of periods of the base
// frequency, so looping it is click-free.
func synthRumble(seconds float64) []byte {
	const baseHz = 60.0
	periods := math.Floor(seconds * baseHz)
	samples := int(periods / baseHz * audioSampleRate)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / audioSampleRate
		v := 0.5*math.Sin(2*math.Pi*baseHz*t) +
			0.3*math.Sin(2*math.Pi*baseHz*2*t) +
			0.2*math.Sin(2*math.Pi*baseHz*3.5*t)
		writeSample(pcm, i, v*0.5)
	}
	return pcm
}

func writeSample(pcm []byte, i int, v float64) {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	s := int16(v * math.MaxInt16)
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}
