package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hd-camera/internal/domain"
)

type sessionFixture struct {
	media      *fakeMedia
	wakeLocks  *fakeWakeLocks
	visibility *fakeVisibility
	notifier   *fakeNotifier
	downloader *mockDownloader
	session    *CameraSession
}

var fixedTime = time.Date(2024, time.June, 1, 12, 30, 45, 0, time.Local)

func newFixture(opts SessionOptions) *sessionFixture {
	f := &sessionFixture{
		media: &fakeMedia{
			devices: []domain.VideoDevice{
				{ID: "front01", Label: "Front", Kind: domain.KindVideoInput},
				{ID: "mic", Label: "Mic", Kind: "audioinput"},
				{ID: "abc123", Label: "", Kind: domain.KindVideoInput},
			},
			surfaceW: 1920,
			surfaceH: 1080,
		},
		wakeLocks:  &fakeWakeLocks{supported: true},
		visibility: &fakeVisibility{},
		notifier:   &fakeNotifier{},
		downloader: &mockDownloader{},
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedTime }
	}
	f.session = NewCameraSession(Dependencies{
		Media:      f.media,
		WakeLocks:  f.wakeLocks,
		Visibility: f.visibility,
		Encoder:    stubEncoder{},
		Downloader: f.downloader,
		Notifier:   f.notifier,
	}, opts)
	return f
}

func TestMount_EnumeratesVideoInputsOnce(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()

	require.NoError(t, f.session.Mount(ctx))
	require.NoError(t, f.session.Mount(ctx))

	devices := f.session.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "front01", devices[0].ID)
	assert.Equal(t, "abc123", devices[1].ID)
	assert.Equal(t, 1, f.media.enumerateCt)
}

func TestMount_ZeroDevicesIsValid(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.media.devices = nil

	require.NoError(t, f.session.Mount(context.Background()))
	assert.Empty(t, f.session.Devices())
	assert.True(t, f.session.Status().Streaming)
}

func TestMount_EnumerationFailureKeepsEmptyList(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.media.enumErr = errors.New("boom")

	require.NoError(t, f.session.Mount(context.Background()))
	assert.Empty(t, f.session.Devices())
}

func TestMount_AutomaticSelectionPrefersEnvironmentCamera(t *testing.T) {
	f := newFixture(SessionOptions{})

	require.NoError(t, f.session.Mount(context.Background()))

	require.Len(t, f.media.requests, 1)
	assert.Equal(t, domain.StreamConstraints{
		IdealWidth:  1920,
		IdealHeight: 1080,
		FacingMode:  domain.FacingEnvironment,
	}, f.media.requests[0])
	assert.Equal(t, "", f.session.Status().SelectedDeviceID)
	assert.NotNil(t, f.session.Surface())
}

func TestSelectDevice_TeardownPrecedesExactRequest(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	require.NoError(t, f.session.Mount(ctx))

	require.NoError(t, f.session.SelectDevice(ctx, "abc123"))

	assert.Equal(t, []string{"open:", "stop:stream-1-video", "open:abc123"}, f.media.events)
	last := f.media.requests[len(f.media.requests)-1]
	assert.Equal(t, "abc123", last.DeviceID)
	assert.Empty(t, last.FacingMode)
	assert.Equal(t, "abc123", f.session.Status().SelectedDeviceID)
}

func TestSelectDevice_SameDeviceStillReopens(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	require.NoError(t, f.session.Mount(ctx))

	require.NoError(t, f.session.SelectDevice(ctx, "abc123"))
	require.NoError(t, f.session.SelectDevice(ctx, "abc123"))

	assert.Len(t, f.media.streams, 3)
	assert.True(t, f.media.streams[1].allStopped())
}

func TestSelectDevice_AtMostOneOpenStream(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	require.NoError(t, f.session.Mount(ctx))

	for _, id := range []string{"abc123", "", "front01", "abc123", "", "front01"} {
		require.NoError(t, f.session.SelectDevice(ctx, id))
		assert.Equal(t, 1, f.media.open)
	}
	assert.Equal(t, 1, f.media.maxOpen)
}

func TestOpenStream_FailureAlertsOnceAndLeavesNoStream(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.media.openErr = errors.New("NotAllowedError")

	err := f.session.Mount(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCameraUnavailable))
	assert.Equal(t, []string{CameraFailureMessage}, f.notifier.alerts)
	assert.Nil(t, f.session.Surface())
	assert.False(t, f.session.Status().Streaming)
}

func TestOpenStream_EachFailedAttemptAlertsOnce(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	require.NoError(t, f.session.Mount(ctx))

	f.media.openErr = errors.New("device busy")
	require.Error(t, f.session.SelectDevice(ctx, "abc123"))
	require.Error(t, f.session.SelectDevice(ctx, "front01"))

	assert.Len(t, f.notifier.alerts, 2)
	assert.True(t, f.media.streams[0].allStopped())
	assert.Nil(t, f.session.Surface())
	assert.Equal(t, 0, f.media.open)
}

func TestCapture_EncodesAndDownloadsWithTimestampName(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	f.downloader.On("Save", mock.Anything, "capture-01062024123045.jpg", mock.Anything).
		Return("capture-01062024123045.jpg", nil).Once()
	require.NoError(t, f.session.Mount(ctx))

	frame, err := f.session.Capture(ctx)

	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Regexp(t, `^capture-\d{14}\.jpg$`, frame.Filename)
	assert.Equal(t, 1920, frame.Width)
	assert.Equal(t, 1080, frame.Height)
	assert.Equal(t, byte(DefaultJPEGQuality), frame.Data[2])
	assert.Equal(t, frame, f.session.LastCapture())
	assert.Equal(t, frame.Filename, f.session.Status().LastCapture)
	f.downloader.AssertExpectations(t)
}

func TestCapture_ZeroDimensionIsSilentNoop(t *testing.T) {
	for _, tc := range []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 1080},
		{"zero height", 1920, 0},
		{"not ready", 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(SessionOptions{})
			f.media.surfaceW, f.media.surfaceH = tc.w, tc.h
			ctx := context.Background()
			require.NoError(t, f.session.Mount(ctx))

			frame, err := f.session.Capture(ctx)

			assert.NoError(t, err)
			assert.Nil(t, frame)
			f.downloader.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCapture_WithoutStreamIsNoop(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.media.openErr = errors.New("denied")
	ctx := context.Background()
	_ = f.session.Mount(ctx)

	frame, err := f.session.Capture(ctx)

	assert.NoError(t, err)
	assert.Nil(t, frame)
}

func TestCapture_SaveErrorIsReturned(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	f.downloader.On("Save", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))
	require.NoError(t, f.session.Mount(ctx))

	frame, err := f.session.Capture(ctx)

	assert.Error(t, err)
	assert.Nil(t, frame)
	assert.Nil(t, f.session.LastCapture())
}

func TestWakeLock_HeldAndReleasedOnClose(t *testing.T) {
	f := newFixture(SessionOptions{})
	require.NoError(t, f.session.Mount(context.Background()))

	st := f.session.Status()
	assert.True(t, st.WakeLockHeld)
	assert.Equal(t, WakeLockHeldText, st.WakeLockText)

	require.NoError(t, f.session.Close())
	require.Len(t, f.wakeLocks.locks, 1)
	assert.True(t, f.wakeLocks.locks[0].released)
}

func TestWakeLock_UnsupportedSurfacesWarning(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.wakeLocks.supported = false

	require.NoError(t, f.session.Mount(context.Background()))

	st := f.session.Status()
	assert.False(t, st.WakeLockHeld)
	assert.Equal(t, WakeLockMissingText, st.WakeLockText)
	assert.Equal(t, 0, f.wakeLocks.requests)
	assert.True(t, st.Streaming)
}

func TestWakeLock_RequestFailureSurfacesWarning(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.wakeLocks.err = errors.New("NotAllowedError")

	require.NoError(t, f.session.Mount(context.Background()))

	assert.Equal(t, WakeLockMissingText, f.session.Status().WakeLockText)
}

func TestWakeLock_ReacquiredWhenVisibleAgain(t *testing.T) {
	f := newFixture(SessionOptions{})
	require.NoError(t, f.session.Mount(context.Background()))

	f.visibility.emit(domain.VisibilityHidden)
	assert.Equal(t, 1, f.wakeLocks.requests)

	f.visibility.emit(domain.VisibilityVisible)
	assert.Equal(t, 2, f.wakeLocks.requests)
	assert.True(t, f.wakeLocks.locks[0].released)
	assert.True(t, f.session.Status().WakeLockHeld)
}

func TestWakeLock_NotReacquiredIfNeverHeld(t *testing.T) {
	f := newFixture(SessionOptions{})
	f.wakeLocks.err = errors.New("denied")
	require.NoError(t, f.session.Mount(context.Background()))

	f.visibility.emit(domain.VisibilityVisible)

	assert.Equal(t, 1, f.wakeLocks.requests)
}

func TestClose_StopsEveryTrackAndUnsubscribes(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx := context.Background()
	require.NoError(t, f.session.Mount(ctx))
	require.NoError(t, f.session.SelectDevice(ctx, "abc123"))

	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Close())

	for _, st := range f.media.streams {
		assert.True(t, st.allStopped(), st.id)
	}
	assert.True(t, f.visibility.unsubscribed)
	assert.Nil(t, f.session.Surface())

	_, err := f.session.Capture(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.ErrorIs(t, f.session.SelectDevice(ctx, ""), domain.ErrSessionClosed)
	assert.ErrorIs(t, f.session.Mount(ctx), domain.ErrSessionClosed)
}

func TestRunTrigger_CapturesOnSignal(t *testing.T) {
	f := newFixture(SessionOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.downloader.On("Save", mock.Anything, mock.Anything, mock.Anything).Return("capture-01062024123045.jpg", nil)
	require.NoError(t, f.session.Mount(ctx))

	trigger := make(chanTrigger)
	done := make(chan error, 1)
	go func() { done <- f.session.RunTrigger(ctx, trigger) }()

	trigger <- struct{}{}
	close(trigger)

	require.NoError(t, <-done)
	f.downloader.AssertNumberOfCalls(t, "Save", 1)
}

func TestRunTrigger_UnsupportedOnNativeHost(t *testing.T) {
	f := newFixture(SessionOptions{Native: true})
	require.NoError(t, f.session.Mount(context.Background()))

	err := f.session.RunTrigger(context.Background(), make(chanTrigger))

	assert.ErrorIs(t, err, domain.ErrTriggerUnsupported)
	assert.Equal(t, NativeKeyGuidance, f.session.Status().Guidance)
}

func TestOnChange_CalledOutsideLock(t *testing.T) {
	f := newFixture(SessionOptions{})
	calls := 0
	f.session.OnChange(func() {
		_ = f.session.Status()
		calls++
	})

	require.NoError(t, f.session.Mount(context.Background()))
	require.NoError(t, f.session.Close())

	assert.Equal(t, 2, calls)
}

// Сценарий: две камеры, автоматический выбор, съемка
func TestEndToEnd_AutomaticCapture(t *testing.T) {
	f := newFixture(SessionOptions{Clock: time.Now})
	f.media.devices = f.media.devices[:1]
	f.media.devices = append(f.media.devices, domain.VideoDevice{ID: "rear02", Label: "Rear", Kind: domain.KindVideoInput})
	ctx := context.Background()
	f.downloader.On("Save", mock.Anything, mock.MatchedBy(func(name string) bool {
		return len(name) == len("capture-01062024123045.jpg")
	}), mock.Anything).Return("capture-01062024123045.jpg", nil).Once()

	require.NoError(t, f.session.Mount(ctx))
	require.Len(t, f.session.Devices(), 2)
	assert.Equal(t, "", f.session.Status().SelectedDeviceID)
	assert.Equal(t, domain.FacingEnvironment, f.media.requests[0].FacingMode)

	frame, err := f.session.Capture(ctx)
	require.NoError(t, err)
	require.NotNil(t, frame)

	f.downloader.AssertExpectations(t)
	name := f.downloader.Calls[0].Arguments.String(1)
	assert.Regexp(t, `^capture-\d{14}\.jpg$`, name)
}

func TestMount_InitialDeviceSelection(t *testing.T) {
	f := newFixture(SessionOptions{InitialDeviceID: "abc123"})

	require.NoError(t, f.session.Mount(context.Background()))

	assert.Equal(t, "abc123", f.media.requests[0].DeviceID)
	assert.Empty(t, f.media.requests[0].FacingMode)
}
