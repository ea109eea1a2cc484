// Package wakelock не дает хосту погасить экран, пока открыта сессия камеры.
package wakelock

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"hd-camera/internal/application"
	"hd-camera/internal/domain"
)

const inhibitBinary = "systemd-inhibit"

// Inhibitor держит блокировку через systemd-inhibit. Блокировка живет,
// пока открыт stdin дочернего процесса cat.
type Inhibitor struct {
	logger   application.Logger
	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewInhibitor создает блокировку экрана через systemd-inhibit
func NewInhibitor(logger application.Logger) *Inhibitor {
	return &Inhibitor{
		logger:   logger,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

// Supported проверяет наличие systemd-inhibit на хосте
func (i *Inhibitor) Supported() bool {
	_, err := i.lookPath(inhibitBinary)
	return err == nil
}

// Request запускает systemd-inhibit и возвращает дескриптор блокировки
func (i *Inhibitor) Request(ctx context.Context) (domain.WakeLock, error) {
	path, err := i.lookPath(inhibitBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWakeLockUnsupported, err)
	}

	// контекст запроса не должен убивать блокировку после возврата
	cmd := i.command(context.WithoutCancel(ctx), path,
		"--what=idle:sleep",
		"--who=hd-camera",
		"--why=Camera preview is open",
		"--mode=block",
		"cat",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("inhibit stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", inhibitBinary, err)
	}

	i.logger.Debug("Блокировка экрана: pid %d", cmd.Process.Pid)
	return &processLock{cmd: cmd, stdin: stdin}, nil
}

type processLock struct {
	once  sync.Once
	err   error
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// Release закрывает stdin, cat завершается и systemd-inhibit снимает блокировку
func (l *processLock) Release() error {
	l.once.Do(func() {
		if err := l.stdin.Close(); err != nil {
			l.err = err
			_ = l.cmd.Process.Kill()
		}
		if err := l.cmd.Wait(); err != nil && l.err == nil {
			l.err = err
		}
	})
	return l.err
}

// Unsupported платформа без блокировки экрана
type Unsupported struct{}

// Supported всегда false
func (Unsupported) Supported() bool { return false }

// Request всегда возвращает ErrWakeLockUnsupported
func (Unsupported) Request(context.Context) (domain.WakeLock, error) {
	return nil, domain.ErrWakeLockUnsupported
}
