package camera

import (
	"errors"
	"image"
	"io"
	"sync"

	"hd-camera/internal/application"
	"hd-camera/internal/domain"
	"hd-camera/internal/infrastructure/imaging"
)

// FrameReader источник сырых кадров, совместим с video.Reader из mediadevices
type FrameReader interface {
	Read() (img image.Image, release func(), err error)
}

// Preview хранит последний кадр живого потока в двух буферах,
// которые меняются местами под блокировкой.
// Пока первый кадр не получен, размер поверхности 0x0.
type Preview struct {
	logger application.Logger

	mutex  sync.RWMutex
	latest *image.RGBA

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewPreview запускает чтение кадров в отдельной горутине
func NewPreview(reader FrameReader, logger application.Logger) *Preview {
	p := &Preview{
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.pump(reader)
	return p
}

func (p *Preview) pump(reader FrameReader) {
	defer close(p.stopped)

	var spare *image.RGBA
	for {
		select {
		case <-p.done:
			return
		default:
		}

		img, release, err := reader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-p.done:
				default:
					p.logger.Error("Ошибка чтения кадра: %v", err)
				}
			}
			return
		}

		// буфер кадра возвращается драйверу после release, поэтому копируем
		frame := imaging.RasterizeInto(spare, img)
		if release != nil {
			release()
		}

		p.mutex.Lock()
		select {
		case <-p.done:
			p.mutex.Unlock()
			return
		default:
		}
		spare, p.latest = p.latest, frame
		p.mutex.Unlock()
	}
}

// Dimensions возвращает размер последнего кадра
func (p *Preview) Dimensions() (int, int) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.latest == nil {
		return 0, 0
	}
	b := p.latest.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot возвращает копию последнего кадра
func (p *Preview) Snapshot() (image.Image, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.latest == nil {
		return nil, domain.ErrInvalidFrame
	}
	return imaging.Rasterize(p.latest), nil
}

// Thumbnail возвращает уменьшенную копию последнего кадра
func (p *Preview) Thumbnail(maxWidth int) (image.Image, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.latest == nil {
		return nil, domain.ErrInvalidFrame
	}
	return imaging.Thumbnail(p.latest, maxWidth), nil
}

// Stop прекращает чтение кадров и сбрасывает поверхность
func (p *Preview) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.mutex.Lock()
		p.latest = nil
		p.mutex.Unlock()
	})
}

// Done закрывается, когда горутина чтения завершилась
func (p *Preview) Done() <-chan struct{} {
	return p.stopped
}
