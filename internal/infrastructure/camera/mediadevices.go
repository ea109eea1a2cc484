package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/prop"

	"hd-camera/internal/application"
	"hd-camera/internal/domain"
)

// MediaDevicesManager реализация MediaCapability с использованием библиотеки mediadevices
type MediaDevicesManager struct {
	logger application.Logger

	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

// NewMediaDevicesManager создает новый менеджер медиаустройств
func NewMediaDevicesManager(logger application.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger:       logger,
		enumerate:    mediadevices.EnumerateDevices,
		getUserMedia: mediadevices.GetUserMedia,
	}
}

// EnumerateDevices возвращает список камер
func (m *MediaDevicesManager) EnumerateDevices(ctx context.Context) ([]domain.VideoDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices := m.enumerate()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  domain.KindVideoInput,
		})
	}

	return result, nil
}

// GetUserMedia открывает камеру с заданными ограничениями
func (m *MediaDevicesManager) GetUserMedia(ctx context.Context, c domain.StreamConstraints) (domain.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preferred := ""
	if c.DeviceID == "" && c.FacingMode == domain.FacingEnvironment {
		devices, _ := m.EnumerateDevices(ctx)
		preferred = PreferEnvironment(devices)
		if preferred != "" {
			m.logger.Debug("Тыловая камера: %s", preferred)
		}
	}

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			// Задаем предпочтительные параметры, но не строгие
			if c.IdealWidth > 0 {
				mc.Width = prop.Int(int32(c.IdealWidth))
			}
			if c.IdealHeight > 0 {
				mc.Height = prop.Int(int32(c.IdealHeight))
			}
			applyDevice(mc, c.DeviceID, preferred)
		},
	}

	mediaStream, err := m.getUserMedia(constraints)
	if err != nil {
		m.logger.Error("Ошибка с исходными ограничениями: %v", err)

		// Пробуем без ограничений по размеру
		m.logger.Info("Пробуем с минимальными ограничениями...")
		constraints = mediadevices.MediaStreamConstraints{
			Video: func(mc *mediadevices.MediaTrackConstraints) {
				applyDevice(mc, c.DeviceID, preferred)
			},
		}

		mediaStream, err = m.getUserMedia(constraints)
		if err != nil {
			return nil, fmt.Errorf("get user media: %w", err)
		}
	}

	return newStream(mediaStream, m.logger)
}

func applyDevice(mc *mediadevices.MediaTrackConstraints, exact, preferred string) {
	switch {
	case exact != "":
		mc.DeviceID = prop.StringExact(exact)
	case preferred != "":
		mc.DeviceID = prop.String(preferred)
	}
}

// Stream обертка для MediaDevices MediaStream
type Stream struct {
	id      string
	tracks  []domain.MediaTrack
	preview *Preview
}

func newStream(ms mediadevices.MediaStream, logger application.Logger) (*Stream, error) {
	videoTracks := ms.GetVideoTracks()
	if len(videoTracks) == 0 {
		closeAll(ms.GetTracks())
		return nil, errors.New("video track not found")
	}

	videoTrack, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeAll(ms.GetTracks())
		return nil, fmt.Errorf("unexpected video track type %T", videoTracks[0])
	}

	preview := NewPreview(videoTrack.NewReader(false), logger)

	s := &Stream{id: videoTrack.ID(), preview: preview}
	for _, t := range ms.GetTracks() {
		track := &Track{track: t, logger: logger}
		if t == videoTracks[0] {
			track.preview = preview
		}
		s.tracks = append(s.tracks, track)
	}
	return s, nil
}

func closeAll(tracks []mediadevices.Track) {
	for _, t := range tracks {
		_ = t.Close()
	}
}

// ID возвращает идентификатор потока
func (s *Stream) ID() string {
	return s.id
}

// Tracks возвращает треки потока
func (s *Stream) Tracks() []domain.MediaTrack {
	return s.tracks
}

// Surface возвращает поверхность превью
func (s *Stream) Surface() domain.VideoSurface {
	return s.preview
}

// Track обертка для MediaDevices Track
type Track struct {
	track   mediadevices.Track
	preview *Preview
	logger  application.Logger
}

// ID возвращает идентификатор трека
func (t *Track) ID() string {
	return t.track.ID()
}

// Stop останавливает превью и закрывает трек, освобождая камеру
func (t *Track) Stop() error {
	if t.preview != nil {
		t.preview.Stop()
	}
	return t.track.Close()
}
