package domain

import (
	"image"
	"time"
)

// KindVideoInput тип устройства захвата видео
const KindVideoInput = "videoinput"

// FacingEnvironment камера, направленная от пользователя (тыловая)
const FacingEnvironment = "environment"

// VideoDevice представляет устройство захвата видео
type VideoDevice struct {
	ID    string // Уникальный идентификатор устройства
	Label string // Человекочитаемое имя устройства (может быть пустым)
	Kind  string // Тип устройства
}

// DisplayLabel возвращает имя для выбора камеры в интерфейсе
func (d VideoDevice) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	suffix := d.ID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Камера " + suffix
}

// StreamConstraints параметры запроса видеопотока
type StreamConstraints struct {
	DeviceID    string // Точный ID устройства, пусто = автоматический выбор
	IdealWidth  int    // Желаемая ширина, не строгое требование
	IdealHeight int    // Желаемая высота, не строгое требование
	FacingMode  string // Направление камеры, только при автоматическом выборе
}

// MediaTrack представляет один трек медиапотока
type MediaTrack interface {
	ID() string
	Stop() error
}

// VideoSurface поверхность с живым видео
type VideoSurface interface {
	// Dimensions возвращает натуральный размер кадра; 0x0 пока поток не готов
	Dimensions() (width, height int)
	// Snapshot возвращает текущий кадр
	Snapshot() (image.Image, error)
}

// MediaStream представляет открытый поток камеры
type MediaStream interface {
	ID() string
	Tracks() []MediaTrack
	Surface() VideoSurface
}

// WakeLock дескриптор блокировки отключения экрана
type WakeLock interface {
	Release() error
}

// VisibilityState состояние видимости страницы
type VisibilityState string

const (
	VisibilityVisible VisibilityState = "visible"
	VisibilityHidden  VisibilityState = "hidden"
)

// CapturedFrame снимок, закодированный в JPEG
type CapturedFrame struct {
	Filename string
	Data     []byte
	Width    int
	Height   int
	TakenAt  time.Time
}
