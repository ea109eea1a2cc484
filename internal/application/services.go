package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hd-camera/internal/domain"
)

const (
	// DefaultIdealWidth желаемая ширина потока
	DefaultIdealWidth = 1920
	// DefaultIdealHeight желаемая высота потока
	DefaultIdealHeight = 1080
	// DefaultJPEGQuality качество JPEG снимка
	DefaultJPEGQuality = 96
)

// Тексты для пользователя
const (
	CameraFailureMessage = "Не удалось получить доступ к камере. Проверьте разрешения и попробуйте снова."
	WakeLockHeldText     = "Экран останется включенным, пока открыта эта страница."
	WakeLockMissingText  = "Не удалось сохранить экран включенным в этой среде."
	CaptureKeyHint       = "Нажмите громкость + чтобы сделать снимок"
	NativeKeyGuidance    = "Аппаратная кнопка громкости работает только через нативный плагин. Используйте кнопку съемки в приложении."
)

// Dependencies внешние возможности платформы, которые использует сессия
type Dependencies struct {
	Media      MediaCapability
	WakeLocks  WakeLockCapability
	Visibility VisibilityCapability
	Encoder    FrameEncoder
	Downloader Downloader
	Notifier   Notifier
	Metrics    MetricsRecorder
	Logger     Logger
}

// SessionOptions параметры сессии
type SessionOptions struct {
	Native          bool   // Упакованное нативное приложение: кнопка громкости недоступна
	InitialDeviceID string // Начальный выбор камеры, пусто = автоматически
	IdealWidth      int
	IdealHeight     int
	Quality         int
	Clock           func() time.Time
}

// Status снимок состояния сессии для интерфейса
type Status struct {
	Devices          []domain.VideoDevice
	SelectedDeviceID string
	Streaming        bool
	Width            int
	Height           int
	WakeLockHeld     bool
	WakeLockText     string
	KeyHint          string
	Guidance         string
	LastCapture      string
}

// CameraSession управляет жизненным циклом камеры: список устройств,
// единственный открытый поток, съемка кадра и блокировка экрана.
type CameraSession struct {
	deps Dependencies
	opts SessionOptions

	mutex       sync.Mutex
	mounted     bool
	closed      bool
	devices     []domain.VideoDevice
	selectedID  string
	stream      domain.MediaStream
	surface     domain.VideoSurface
	wakeLock    domain.WakeLock
	wakeLockWas bool
	unsubscribe func()
	lastCapture *domain.CapturedFrame
	onChange    func()
}

// NewCameraSession создает новую сессию камеры
func NewCameraSession(deps Dependencies, opts SessionOptions) *CameraSession {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if opts.IdealWidth <= 0 {
		opts.IdealWidth = DefaultIdealWidth
	}
	if opts.IdealHeight <= 0 {
		opts.IdealHeight = DefaultIdealHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultJPEGQuality
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &CameraSession{deps: deps, opts: opts, selectedID: opts.InitialDeviceID}
}

// OnChange устанавливает обработчик изменения состояния.
// Вызывается вне блокировки сессии.
func (s *CameraSession) OnChange(fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onChange = fn
}

// Mount загружает список камер, открывает поток выбранной камеры,
// запрашивает блокировку экрана и подписывается на видимость страницы.
// Ошибка открытия потока уже показана пользователю и возвращается для информации.
func (s *CameraSession) Mount(ctx context.Context) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return domain.ErrSessionClosed
	}
	if s.mounted {
		s.mutex.Unlock()
		return nil
	}
	s.mounted = true

	s.loadDevicesLocked(ctx)
	err := s.openStreamLocked(ctx)
	s.acquireWakeLockLocked(ctx)
	if s.deps.Visibility != nil {
		s.unsubscribe = s.deps.Visibility.Subscribe(s.handleVisibility)
	}
	s.mutex.Unlock()

	s.changed()
	return err
}

// SelectDevice выбирает камеру и переоткрывает поток.
// Пустой ID означает автоматический выбор тыловой камеры.
func (s *CameraSession) SelectDevice(ctx context.Context, deviceID string) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return domain.ErrSessionClosed
	}
	s.selectedID = deviceID
	s.deps.Logger.Info("Выбрана камера: %q", deviceID)
	err := s.openStreamLocked(ctx)
	s.mutex.Unlock()

	s.changed()
	return err
}

// Capture снимает текущий кадр, кодирует его в JPEG и сохраняет файл.
// Если поток еще не готов (размер кадра 0), ничего не делает и возвращает nil.
func (s *CameraSession) Capture(ctx context.Context) (*domain.CapturedFrame, error) {
	s.mutex.Lock()
	frame, err := s.captureLocked(ctx)
	s.mutex.Unlock()

	if frame != nil {
		s.changed()
	}
	return frame, err
}

// RunTrigger снимает кадр по каждому сигналу триггера до отмены контекста.
// На нативной платформе триггер не подключается.
func (s *CameraSession) RunTrigger(ctx context.Context, trigger CaptureTrigger) error {
	if s.opts.Native {
		s.deps.Logger.Warn("Кнопка громкости недоступна на нативной платформе без плагина")
		return domain.ErrTriggerUnsupported
	}

	signals := trigger.Triggers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			if _, err := s.Capture(ctx); err != nil {
				if errors.Is(err, domain.ErrSessionClosed) {
					return nil
				}
				s.deps.Logger.Error("Ошибка съемки по триггеру: %v", err)
			}
		}
	}
}

// Close останавливает поток, снимает блокировку экрана и отписывается
// от событий видимости. Повторный вызов ничего не делает.
func (s *CameraSession) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.teardownLocked()
	s.releaseWakeLockLocked()
	s.mutex.Unlock()

	s.deps.Logger.Info("Сессия камеры закрыта")
	s.changed()
	return nil
}

// Devices возвращает список камер
func (s *CameraSession) Devices() []domain.VideoDevice {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]domain.VideoDevice(nil), s.devices...)
}

// Surface возвращает текущую поверхность превью или nil
func (s *CameraSession) Surface() domain.VideoSurface {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.surface
}

// LastCapture возвращает последний снимок для повторного скачивания
func (s *CameraSession) LastCapture() *domain.CapturedFrame {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastCapture
}

// Status возвращает состояние сессии для интерфейса
func (s *CameraSession) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st := Status{
		Devices:          append([]domain.VideoDevice(nil), s.devices...),
		SelectedDeviceID: s.selectedID,
		Streaming:        s.stream != nil,
		WakeLockHeld:     s.wakeLock != nil,
		KeyHint:          CaptureKeyHint,
	}
	if s.surface != nil {
		st.Width, st.Height = s.surface.Dimensions()
	}
	if st.WakeLockHeld {
		st.WakeLockText = WakeLockHeldText
	} else {
		st.WakeLockText = WakeLockMissingText
	}
	if s.opts.Native {
		st.Guidance = NativeKeyGuidance
	}
	if s.lastCapture != nil {
		st.LastCapture = s.lastCapture.Filename
	}
	return st
}

func (s *CameraSession) loadDevicesLocked(ctx context.Context) {
	devices, err := s.deps.Media.EnumerateDevices(ctx)
	if err != nil {
		s.deps.Logger.Error("Ошибка получения списка устройств: %v", err)
		return
	}

	s.devices = s.devices[:0]
	for _, d := range devices {
		if d.Kind == domain.KindVideoInput {
			s.devices = append(s.devices, d)
		}
	}
	s.deps.Logger.Info("Найдено камер: %d", len(s.devices))
}

// openStreamLocked закрывает текущий поток и только потом запрашивает новый
func (s *CameraSession) openStreamLocked(ctx context.Context) error {
	s.teardownLocked()

	constraints := domain.StreamConstraints{
		IdealWidth:  s.opts.IdealWidth,
		IdealHeight: s.opts.IdealHeight,
	}
	if s.selectedID != "" {
		constraints.DeviceID = s.selectedID
	} else {
		constraints.FacingMode = domain.FacingEnvironment
	}

	s.deps.Logger.Info("Открытие камеры: устройство=%q, %dx%d, facing=%q",
		constraints.DeviceID, constraints.IdealWidth, constraints.IdealHeight, constraints.FacingMode)

	stream, err := s.deps.Media.GetUserMedia(ctx, constraints)
	if err != nil {
		s.deps.Metrics.StreamFailed()
		s.deps.Logger.Error("Ошибка открытия камеры: %v", err)
		if s.deps.Notifier != nil {
			s.deps.Notifier.Alert(CameraFailureMessage)
		}
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}

	s.stream = stream
	s.surface = stream.Surface()
	s.deps.Metrics.StreamOpened()
	s.deps.Logger.Info("Используется поток: %s", stream.ID())
	return nil
}

func (s *CameraSession) teardownLocked() {
	if s.stream == nil {
		return
	}

	for _, track := range s.stream.Tracks() {
		if err := track.Stop(); err != nil {
			s.deps.Logger.Error("Ошибка остановки трека %s: %v", track.ID(), err)
		}
	}
	s.deps.Logger.Debug("Поток %s остановлен", s.stream.ID())

	s.stream = nil
	s.surface = nil
	s.deps.Metrics.StreamClosed()
}

func (s *CameraSession) acquireWakeLockLocked(ctx context.Context) {
	if s.deps.WakeLocks == nil || !s.deps.WakeLocks.Supported() {
		s.wakeLock = nil
		s.deps.Metrics.WakeLockHeld(false)
		s.deps.Logger.Warn("Блокировка экрана не поддерживается")
		return
	}

	lock, err := s.deps.WakeLocks.Request(ctx)
	if err != nil {
		s.wakeLock = nil
		s.deps.Metrics.WakeLockHeld(false)
		s.deps.Logger.Warn("Не удалось заблокировать отключение экрана: %v", err)
		return
	}

	s.wakeLock = lock
	s.wakeLockWas = true
	s.deps.Metrics.WakeLockHeld(true)
	s.deps.Logger.Debug("Блокировка экрана получена")
}

func (s *CameraSession) releaseWakeLockLocked() {
	if s.wakeLock == nil {
		return
	}
	if err := s.wakeLock.Release(); err != nil {
		s.deps.Logger.Error("Ошибка снятия блокировки экрана: %v", err)
	}
	s.wakeLock = nil
	s.deps.Metrics.WakeLockHeld(false)
}

// handleVisibility повторно запрашивает блокировку экрана, когда страница
// снова видима: платформы снимают ее при уходе в фон.
func (s *CameraSession) handleVisibility(state domain.VisibilityState) {
	if state != domain.VisibilityVisible {
		return
	}

	s.mutex.Lock()
	if s.closed || !s.wakeLockWas {
		s.mutex.Unlock()
		return
	}
	s.releaseWakeLockLocked()
	s.acquireWakeLockLocked(context.Background())
	s.mutex.Unlock()

	s.changed()
}

func (s *CameraSession) captureLocked(ctx context.Context) (*domain.CapturedFrame, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.surface == nil {
		s.deps.Metrics.CaptureSkipped()
		return nil, nil
	}
	width, height := s.surface.Dimensions()
	if width == 0 || height == 0 {
		s.deps.Metrics.CaptureSkipped()
		s.deps.Logger.Debug("Кадр еще не готов, съемка пропущена")
		return nil, nil
	}

	img, err := s.surface.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	data, err := s.deps.Encoder.Encode(img, s.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	takenAt := s.opts.Clock()
	name, err := s.deps.Downloader.Save(ctx, CaptureFilename(takenAt), data)
	if err != nil {
		return nil, fmt.Errorf("save capture: %w", err)
	}

	frame := &domain.CapturedFrame{
		Filename: name,
		Data:     data,
		Width:    width,
		Height:   height,
		TakenAt:  takenAt,
	}
	s.lastCapture = frame
	s.deps.Metrics.FrameCaptured()
	s.deps.Logger.Info("Снимок сохранен: %s (%dx%d, %d байт)", name, width, height, len(data))
	return frame, nil
}

func (s *CameraSession) changed() {
	s.mutex.Lock()
	fn := s.onChange
	s.mutex.Unlock()

	if fn != nil {
		fn()
	}
}

type nopMetrics struct{}

func (nopMetrics) StreamOpened()     {}
func (nopMetrics) StreamFailed()     {}
func (nopMetrics) StreamClosed()     {}
func (nopMetrics) FrameCaptured()    {}
func (nopMetrics) CaptureSkipped()   {}
func (nopMetrics) WakeLockHeld(bool) {}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
