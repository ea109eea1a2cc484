package application

import (
	"context"
	"image"

	"hd-camera/internal/domain"
)

// MediaCapability интерфейс доступа к камерам платформы
type MediaCapability interface {
	// EnumerateDevices возвращает список доступных устройств
	EnumerateDevices(ctx context.Context) ([]domain.VideoDevice, error)

	// GetUserMedia открывает поток камеры с заданными ограничениями
	GetUserMedia(ctx context.Context, constraints domain.StreamConstraints) (domain.MediaStream, error)
}

// WakeLockCapability интерфейс блокировки отключения экрана
type WakeLockCapability interface {
	// Supported сообщает, поддерживает ли платформа блокировку
	Supported() bool

	// Request запрашивает блокировку
	Request(ctx context.Context) (domain.WakeLock, error)
}

// VisibilityCapability источник событий видимости страницы
type VisibilityCapability interface {
	// Subscribe подписывает обработчик, возвращает функцию отписки
	Subscribe(handler func(domain.VisibilityState)) (unsubscribe func())
}

// FrameEncoder кодирует кадр в JPEG
type FrameEncoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// Downloader сохраняет снимок как именованный файл.
// Возвращает фактическое имя, если исходное уже занято.
type Downloader interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// Notifier показывает пользователю блокирующее уведомление
type Notifier interface {
	Alert(message string)
}

// CaptureTrigger источник сигналов на съемку
type CaptureTrigger interface {
	Triggers() <-chan struct{}
}

// MetricsRecorder счетчики работы сессии
type MetricsRecorder interface {
	StreamOpened()
	StreamFailed()
	StreamClosed()
	FrameCaptured()
	CaptureSkipped()
	WakeLockHeld(held bool)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}
