package keyboard

import (
	"bufio"
	"context"
	"io"

	"hd-camera/internal/application"
)

// Trigger сигналы съемки с клавиатуры терминала: каждый "+" вызывает съемку
type Trigger struct {
	signals chan struct{}
}

// NewTrigger читает input до EOF или отмены контекста
func NewTrigger(ctx context.Context, input io.Reader, logger application.Logger) *Trigger {
	t := &Trigger{signals: make(chan struct{})}
	go t.read(ctx, input, logger)
	return t
}

// Triggers возвращает канал сигналов; закрывается по EOF
func (t *Trigger) Triggers() <-chan struct{} {
	return t.signals
}

func (t *Trigger) read(ctx context.Context, input io.Reader, logger application.Logger) {
	defer close(t.signals)

	reader := bufio.NewReader(input)
	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			if err != io.EOF {
				logger.Error("Ошибка чтения клавиатуры: %v", err)
			}
			return
		}
		if !application.IsCaptureKey("", string(r)) {
			continue
		}

		select {
		case t.signals <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}
