package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/stretchr/testify/mock"

	"hd-camera/internal/domain"
)

// fakeMedia записывает порядок открытий и остановок потоков
type fakeMedia struct {
	mutex       sync.Mutex
	devices     []domain.VideoDevice
	enumErr     error
	openErr     error
	surfaceW    int
	surfaceH    int
	events      []string
	requests    []domain.StreamConstraints
	streams     []*fakeStream
	open        int
	maxOpen     int
	enumerateCt int
}

func (m *fakeMedia) EnumerateDevices(ctx context.Context) ([]domain.VideoDevice, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.enumerateCt++
	return m.devices, m.enumErr
}

func (m *fakeMedia) GetUserMedia(ctx context.Context, c domain.StreamConstraints) (domain.MediaStream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests = append(m.requests, c)
	m.events = append(m.events, "open:"+c.DeviceID)
	if m.openErr != nil {
		return nil, m.openErr
	}

	id := fmt.Sprintf("stream-%d", len(m.streams)+1)
	st := &fakeStream{id: id, media: m}
	st.tracks = []*fakeTrack{{id: id + "-video", stream: st}}
	st.surface = &fakeSurface{width: m.surfaceW, height: m.surfaceH}
	m.streams = append(m.streams, st)

	m.open++
	if m.open > m.maxOpen {
		m.maxOpen = m.open
	}
	return st, nil
}

func (m *fakeMedia) trackStopped(t *fakeTrack) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events = append(m.events, "stop:"+t.id)
	m.open--
}

type fakeStream struct {
	id      string
	media   *fakeMedia
	tracks  []*fakeTrack
	surface *fakeSurface
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []domain.MediaTrack {
	out := make([]domain.MediaTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *fakeStream) Surface() domain.VideoSurface { return s.surface }

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if !t.stopped {
			return false
		}
	}
	return true
}

type fakeTrack struct {
	id      string
	stream  *fakeStream
	stopped bool
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Stop() error {
	if !t.stopped {
		t.stopped = true
		t.stream.media.trackStopped(t)
	}
	return nil
}

type fakeSurface struct {
	width, height int
}

func (s *fakeSurface) Dimensions() (int, int) { return s.width, s.height }

func (s *fakeSurface) Snapshot() (image.Image, error) {
	if s.width == 0 || s.height == 0 {
		return nil, domain.ErrInvalidFrame
	}
	return image.NewRGBA(image.Rect(0, 0, s.width, s.height)), nil
}

// fakeWakeLocks платформа с блокировкой экрана
type fakeWakeLocks struct {
	supported bool
	err       error
	requests  int
	locks     []*fakeWakeLock
}

func (w *fakeWakeLocks) Supported() bool { return w.supported }

func (w *fakeWakeLocks) Request(ctx context.Context) (domain.WakeLock, error) {
	w.requests++
	if w.err != nil {
		return nil, w.err
	}
	l := &fakeWakeLock{}
	w.locks = append(w.locks, l)
	return l, nil
}

type fakeWakeLock struct {
	released bool
}

func (l *fakeWakeLock) Release() error {
	l.released = true
	return nil
}

// fakeVisibility рассылает события видимости вручную
type fakeVisibility struct {
	handler      func(domain.VisibilityState)
	unsubscribed bool
}

func (v *fakeVisibility) Subscribe(h func(domain.VisibilityState)) func() {
	v.handler = h
	return func() {
		v.unsubscribed = true
		v.handler = nil
	}
}

func (v *fakeVisibility) emit(state domain.VisibilityState) {
	if v.handler != nil {
		v.handler(state)
	}
}

type fakeNotifier struct {
	alerts []string
}

func (n *fakeNotifier) Alert(message string) { n.alerts = append(n.alerts, message) }

type stubEncoder struct{}

func (stubEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	return []byte{0xFF, 0xD8, byte(quality), 0xFF, 0xD9}, nil
}

// mockDownloader мок сохранения файлов
type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Save(ctx context.Context, filename string, data []byte) (string, error) {
	args := m.Called(ctx, filename, data)
	return args.String(0), args.Error(1)
}

type chanTrigger chan struct{}

func (c chanTrigger) Triggers() <-chan struct{} { return c }
