package media

import (
	"bytes"
	"sync"
	"time"

	"go.uber.org/zap"
)

type RecordingState string

const (
	RecordingIdle    RecordingState = "idle"
	RecordingActive  RecordingState = "recording"
	RecordingStopped RecordingState = "stopped"
)

const (
	DefaultMimeType  = "video/webm;codecs=vp8,opus"
	ArtifactMimeType = "video/webm"
	DefaultTimeslice = time.Second
)

// Artifact is the recording assembled from captured segments at stop time.
type Artifact struct {
	MimeType  string
	Data      []byte
	Segments  int
	StartedAt time.Time
	StoppedAt time.Time
}

func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// recorder drains a Capture every timeslice into an ordered segment list.
type recorder struct {
	capture   Capture
	timeslice time.Duration
	logger    *zap.Logger
	startedAt time.Time

	mu       sync.Mutex
	segments [][]byte

	stop chan struct{}
	done chan struct{}
}

func startRecorder(capture Capture, timeslice time.Duration, logger *zap.Logger) (*recorder, error) {
	if timeslice <= 0 {
		timeslice = DefaultTimeslice
	}
	if err := capture.Start(timeslice); err != nil {
		return nil, err
	}
	r := &recorder{
		capture:   capture,
		timeslice: timeslice,
		logger:    logger,
		startedAt: time.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *recorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stop:
			return
		}
	}
}

func (r *recorder) flush() {
	data, err := r.capture.Flush()
	if err != nil {
		r.logger.Warn("Failed to flush recording segment", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	r.segments = append(r.segments, data)
	r.mu.Unlock()
}

func (r *recorder) segmentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

// finish stops the flush loop and the capture, then drains the capture one
// last time so the recorder's final slice lands in the artifact. Segments are
// consumed.
func (r *recorder) finish() *Artifact {
	close(r.stop)
	<-r.done
	if err := r.capture.Stop(); err != nil {
		r.logger.Warn("Failed to stop capture", zap.Error(err))
	}
	r.flush()

	r.mu.Lock()
	segments := r.segments
	r.segments = nil
	r.mu.Unlock()

	return &Artifact{
		MimeType:  ArtifactMimeType,
		Data:      bytes.Join(segments, nil),
		Segments:  len(segments),
		StartedAt: r.startedAt,
		StoppedAt: time.Now(),
	}
}
