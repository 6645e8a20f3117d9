package testutil

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
)

// AmpDescriptor is a Go unit multiplying port 1 by the gain on port 0 into
// port 2.
type AmpDescriptor string

func (d AmpDescriptor) URI() string { return string(d) }

func (d AmpDescriptor) Instantiate(float64, string, []entities.Feature) (ports.UnitHandle, error) {
	return &ampHandle{}, nil
}

type ampHandle struct {
	ports [3]unsafe.Pointer
}

func (h *ampHandle) ConnectPort(port uint32, data unsafe.Pointer) {
	h.ports[port] = data
}

func (h *ampHandle) Run(frames uint32) {
	if frames == 0 {
		return
	}
	gain := *(*float32)(h.ports[0])
	in := unsafe.Slice((*float32)(h.ports[1]), frames)
	out := unsafe.Slice((*float32)(h.ports[2]), frames)
	for i := range out {
		out[i] = in[i] * gain
	}
}

func (h *ampHandle) Cleanup() {}

// Recorder records the lifecycle calls of RecordingDescriptor units. It is
// safe for concurrent use since cleanups may run on the runtime's cleanup
// goroutine.
type Recorder struct {
	mu       sync.Mutex
	events   []string
	features []string
	done     chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{}, 16)}
}

func (r *Recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if event == "cleanup" {
		select {
		case r.done <- struct{}{}:
		default:
		}
	}
}

// Events returns the recorded calls in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Count returns how many times event was recorded.
func (r *Recorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// Features returns the feature URIs passed to the last instantiation.
func (r *Recorder) Features() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.features)
}

// CleanedUp receives a value after every cleanup.
func (r *Recorder) CleanedUp() <-chan struct{} {
	return r.done
}

// ErrRefused is returned by a RecordingDescriptor with Refuse set.
var ErrRefused = errors.New("unit refused construction")

// RecordingDescriptor is a Go unit recording every lifecycle call, with
// activation hooks and extension data. Runs are recorded as "run:<frames>".
// OnRun, if set, is called inside every run after it is recorded.
type RecordingDescriptor struct {
	URIValue  string
	Recorder  *Recorder
	Refuse    bool
	Extension map[string]any
	OnRun     func()
}

func (d *RecordingDescriptor) URI() string { return d.URIValue }

func (d *RecordingDescriptor) Instantiate(_ float64, _ string, features []entities.Feature) (ports.UnitHandle, error) {
	if d.Refuse {
		return nil, ErrRefused
	}
	uris := make([]string, len(features))
	for i, f := range features {
		uris[i] = f.URI
	}
	d.Recorder.mu.Lock()
	d.Recorder.features = uris
	d.Recorder.mu.Unlock()
	d.Recorder.add("instantiate")
	return &recordingHandle{rec: d.Recorder, onRun: d.OnRun}, nil
}

func (d *RecordingDescriptor) ExtensionData(uri string) (any, bool) {
	v, ok := d.Extension[uri]
	return v, ok
}

type recordingHandle struct {
	rec   *Recorder
	onRun func()
}

func (h *recordingHandle) ConnectPort(port uint32, _ unsafe.Pointer) {
	h.rec.add(fmt.Sprintf("connect:%d", port))
}

func (h *recordingHandle) Run(frames uint32) {
	h.rec.add(fmt.Sprintf("run:%d", frames))
	if h.onRun != nil {
		h.onRun()
	}
}

func (h *recordingHandle) Activate()   { h.rec.add("activate") }
func (h *recordingHandle) Deactivate() { h.rec.add("deactivate") }
func (h *recordingHandle) Cleanup()    { h.rec.add("cleanup") }
