package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"aiproctor/interview/internal/events"
	"aiproctor/interview/internal/media"
	"aiproctor/interview/internal/media/mediatest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(device *mediatest.Device, display *mediatest.Display, sink *mediatest.Sink) *media.Controller {
	opts := media.Options{
		Device:    device,
		Timeslice: 10 * time.Millisecond,
	}
	if display != nil {
		opts.Display = display
	}
	if sink != nil {
		opts.Sink = sink
	}
	return media.NewController(opts)
}

func TestAcquire_Success(t *testing.T) {
	device := mediatest.NewDevice()
	c := newController(device, nil, nil)

	var seen []events.Type
	c.Subscribe(func(e events.Event) { seen = append(seen, e.Type) })

	require.NoError(t, c.Acquire(context.Background()))

	state := c.State()
	assert.True(t, state.HasStream)
	assert.True(t, state.AudioEnabled)
	assert.True(t, state.VideoEnabled)
	assert.False(t, state.CameraOff)
	assert.Equal(t, media.RecordingIdle, state.Recording)
	assert.Equal(t, []events.Type{events.TrackReady}, seen)
}

func TestAcquire_TwiceLeavesOneLiveStream(t *testing.T) {
	device := mediatest.NewDevice()
	c := newController(device, nil, nil)

	require.NoError(t, c.Acquire(context.Background()))
	require.NoError(t, c.Acquire(context.Background()))

	streams := device.Streams()
	require.Len(t, streams, 2)
	assert.False(t, streams[0].Live(), "first stream must be fully stopped")
	assert.True(t, streams[1].Live())
	assert.Equal(t, 1, device.Live())
}

func TestAcquire_PermissionDenied(t *testing.T) {
	device := mediatest.NewDevice()
	device.Fail(media.ErrPermissionDenied)
	c := newController(device, nil, nil)

	var seen []events.Event
	c.Subscribe(func(e events.Event) { seen = append(seen, e) })

	err := c.Acquire(context.Background())
	var de *media.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, media.FailurePermission, de.Kind)
	assert.True(t, de.Recoverable())
	assert.ErrorIs(t, err, media.ErrPermissionDenied)

	state := c.State()
	assert.False(t, state.HasStream)
	assert.True(t, state.CameraOff)
	assert.NotEmpty(t, state.LastError)
	require.Len(t, seen, 1)
	assert.Equal(t, events.DeviceError, seen[0].Type)

	// retry succeeds once permission is granted
	device.Fail(nil)
	require.NoError(t, c.Acquire(context.Background()))
	assert.Empty(t, c.State().LastError)
}

func TestAcquire_NoVideoTrackIsDistinct(t *testing.T) {
	device := mediatest.NewDevice()
	device.WithoutVideo(true)
	c := newController(device, nil, nil)

	err := c.Acquire(context.Background())
	var de *media.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, media.FailureNoVideo, de.Kind)
	assert.ErrorIs(t, err, media.ErrNoVideoTrack)
	assert.NotErrorIs(t, err, media.ErrPermissionDenied)

	// the audio-only grant is released
	assert.Equal(t, 0, device.Live())
	assert.False(t, c.State().HasStream)
}

func TestAcquire_NoDevice(t *testing.T) {
	c := media.NewController(media.Options{})
	err := c.Acquire(context.Background())
	assert.ErrorIs(t, err, media.ErrNoDevice)
}

func TestRecording_Lifecycle(t *testing.T) {
	device := mediatest.NewDevice()
	sink := &mediatest.Sink{}
	c := newController(device, nil, sink)
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.StartRecording())
	require.NoError(t, c.StartRecording(), "second start is a no-op")
	assert.Equal(t, media.RecordingActive, c.State().Recording)

	stream := device.Streams()[0]
	require.Len(t, device.Streams(), 1)
	capture := stream.LastCapture()
	require.NotNil(t, capture)
	assert.True(t, capture.Started())
	assert.Equal(t, media.DefaultMimeType, capture.MimeType)

	capture.Push([]byte("seg1-"))
	assert.Eventually(t, func() bool { return c.State().Segments >= 1 }, time.Second, 5*time.Millisecond)
	capture.Push([]byte("seg2"))

	artifact := c.StopRecording(ctx)
	require.NotNil(t, artifact)
	assert.Equal(t, "seg1-seg2", string(artifact.Data))
	assert.Equal(t, media.ArtifactMimeType, artifact.MimeType)
	assert.True(t, capture.Stopped())
	assert.Equal(t, media.RecordingStopped, c.State().Recording)
	assert.Len(t, sink.Artifacts(), 1)

	// stop while stopped is a no-op
	assert.NotPanics(t, func() { assert.Nil(t, c.StopRecording(ctx)) })
}

func TestStopRecording_KeepsFinalSlice(t *testing.T) {
	device := mediatest.NewDevice()
	c := newController(device, nil, nil)
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.StartRecording())
	capture := device.Streams()[0].LastCapture()
	capture.Push([]byte("body-"))
	capture.PushOnStop([]byte("tail"))

	artifact := c.StopRecording(ctx)
	require.NotNil(t, artifact)
	assert.Equal(t, "body-tail", string(artifact.Data))
}

func TestStopRecording_WhenIdle(t *testing.T) {
	c := newController(mediatest.NewDevice(), nil, nil)
	assert.Nil(t, c.StopRecording(context.Background()))
	assert.Equal(t, media.RecordingIdle, c.State().Recording)
}

func TestStartRecording_NeedsStream(t *testing.T) {
	c := newController(mediatest.NewDevice(), nil, nil)
	assert.ErrorIs(t, c.StartRecording(), media.ErrNoStream)
	assert.False(t, c.HasIdleStream())
}

func TestRecording_SinkFailureIsContained(t *testing.T) {
	device := mediatest.NewDevice()
	sink := &mediatest.Sink{}
	sink.Fail(errors.New("disk full"))
	c := newController(device, nil, sink)
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.StartRecording())
	device.Streams()[0].LastCapture().Push([]byte("data"))

	artifact := c.StopRecording(ctx)
	require.NotNil(t, artifact)
	assert.Equal(t, 4, artifact.Size())
}

func TestToggleAudio(t *testing.T) {
	device := mediatest.NewDevice()
	c := newController(device, nil, nil)

	_, err := c.ToggleAudio()
	assert.ErrorIs(t, err, media.ErrNoStream)

	require.NoError(t, c.Acquire(context.Background()))
	enabled, err := c.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, enabled)
	audio := device.Streams()[0].Track(media.KindAudio)
	assert.False(t, audio.Enabled())
	assert.False(t, audio.Stopped(), "toggling never tears down the track")

	enabled, _ = c.ToggleAudio()
	assert.True(t, enabled)
	assert.True(t, audio.Enabled())
}

func TestToggleVideo(t *testing.T) {
	device := mediatest.NewDevice()
	c := newController(device, nil, nil)
	ctx := context.Background()

	var cameraOff int
	c.Subscribe(func(e events.Event) {
		if e.Type == events.CameraOff {
			cameraOff++
		}
	})

	// no stream: toggling re-acquires
	enabled, err := c.ToggleVideo(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 1, device.Calls())

	enabled, err = c.ToggleVideo(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.True(t, c.State().CameraOff)
	assert.Equal(t, 1, cameraOff)
	video := device.Streams()[0].Track(media.KindVideo)
	assert.False(t, video.Enabled())
	assert.False(t, video.Stopped())

	enabled, _ = c.ToggleVideo(ctx)
	assert.True(t, enabled)
	assert.False(t, c.State().CameraOff)
}

func TestFullscreen_BestEffort(t *testing.T) {
	display := mediatest.NewDisplay()
	c := newController(mediatest.NewDevice(), display, nil)
	ctx := context.Background()

	require.NoError(t, c.ToggleFullscreen(ctx))
	assert.True(t, c.State().Fullscreen)
	require.NoError(t, c.ToggleFullscreen(ctx))
	assert.False(t, c.State().Fullscreen)

	display.Fail(errors.New("user gesture required"))
	assert.Error(t, c.EnterFullscreen(ctx))
	assert.False(t, c.State().Fullscreen)

	noDisplay := newController(mediatest.NewDevice(), nil, nil)
	assert.Error(t, noDisplay.EnterFullscreen(ctx))
}

func TestPlaybackErrorReporting(t *testing.T) {
	c := newController(mediatest.NewDevice(), nil, nil)
	c.ReportPlaybackError("decode failed")
	assert.Equal(t, "Error playing video stream", c.State().LastError)
	c.ReportTrackReady()
	assert.Empty(t, c.State().LastError)
}

func TestClose_ReleasesEverything(t *testing.T) {
	device := mediatest.NewDevice()
	display := mediatest.NewDisplay()
	c := newController(device, display, nil)
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.EnterFullscreen(ctx))
	require.NoError(t, c.StartRecording())
	capture := device.Streams()[0].LastCapture()

	c.Close(ctx)
	c.Close(ctx)

	assert.Equal(t, 0, device.Live())
	assert.True(t, capture.Stopped())
	assert.False(t, display.IsFullscreen())
	assert.False(t, c.State().HasStream)
	assert.ErrorIs(t, c.Acquire(ctx), media.ErrClosed)
	assert.ErrorIs(t, c.StartRecording(), media.ErrClosed)
}
