package application

import (
	"context"
	"errors"
	"sync"

	"hd-camera/internal/domain"
)

// PageLifecycle монтирует сессию камеры, когда открывается страница,
// и закрывает ее, когда страница уходит. Одновременно живет одна сессия.
type PageLifecycle struct {
	factory func() *CameraSession
	bind    func(*CameraSession)
	trigger CaptureTrigger
	logger  Logger

	mutex   sync.Mutex
	current *CameraSession
	stop    context.CancelFunc
	done    chan struct{}
}

// NewPageLifecycle создает жизненный цикл страницы.
// bind вызывается с новой сессией при монтировании и с nil при размонтировании.
func NewPageLifecycle(factory func() *CameraSession, bind func(*CameraSession), trigger CaptureTrigger, logger Logger) *PageLifecycle {
	if logger == nil {
		logger = nopLogger{}
	}
	return &PageLifecycle{
		factory: factory,
		bind:    bind,
		trigger: trigger,
		logger:  logger,
	}
}

// Mount создает и монтирует сессию, если она еще не создана
func (p *PageLifecycle) Mount(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current != nil {
		return nil
	}

	session := p.factory()
	p.current = session
	if p.bind != nil {
		p.bind(session)
	}

	err := session.Mount(ctx)

	if p.trigger != nil {
		triggerCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		p.stop = cancel
		p.done = done
		go func() {
			defer close(done)
			if err := session.RunTrigger(triggerCtx, p.trigger); err != nil {
				if errors.Is(err, domain.ErrTriggerUnsupported) {
					p.logger.Info("Съемка кнопкой громкости отключена: %v", err)
					return
				}
				p.logger.Error("Ошибка триггера съемки: %v", err)
			}
		}()
	}
	return err
}

// Unmount закрывает текущую сессию. Повторный вызов ничего не делает.
func (p *PageLifecycle) Unmount() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	session := p.current
	if session == nil {
		return nil
	}
	p.current = nil

	if p.stop != nil {
		p.stop()
		<-p.done
		p.stop, p.done = nil, nil
	}
	if p.bind != nil {
		p.bind(nil)
	}
	return session.Close()
}

// Current возвращает текущую сессию или nil
func (p *PageLifecycle) Current() *CameraSession {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.current
}
