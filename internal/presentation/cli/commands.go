package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"hd-camera/internal/application"
	"hd-camera/internal/domain"
	"hd-camera/internal/infrastructure/config"
	"hd-camera/internal/infrastructure/keyboard"
	"hd-camera/internal/infrastructure/web"
)

const (
	snapTimeout  = 5 * time.Second
	snapInterval = 50 * time.Millisecond
)

// CaptureStore хранилище снимков, доступное для скачивания
type CaptureStore interface {
	application.Downloader
	web.CaptureOpener
}

// Metrics метрики сессии и их HTTP обработчик
type Metrics interface {
	application.MetricsRecorder
	Handler() http.Handler
}

// Components инфраструктура, собранная в main
type Components struct {
	Media     application.MediaCapability
	WakeLocks application.WakeLockCapability
	Encoder   application.FrameEncoder
	Store     CaptureStore
	Metrics   Metrics
	Hub       *web.Hub
	Logger    application.Logger
	Input     io.Reader
	Output    io.Writer
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	components *Components
	config     *Config
}

// Config представляет конфигурацию CLI
type Config struct {
	Address      string
	Width        int
	Height       int
	Quality      int
	DeviceID     string
	OutputDir    string
	PreviewFPS   int
	PreviewWidth int
	Debug        bool
	LogFormat    string
	ListDevices  bool
	Snap         bool
	Headless     bool
	Native       bool
	NoWakeLock   bool
}

// NewCLI создает новый CLI интерфейс
func NewCLI(components *Components) *CLI {
	return &CLI{components: components}
}

// SetConfig устанавливает конфигурацию напрямую
func (c *CLI) SetConfig(config *Config) {
	c.config = config
}

// ParseFlags парсит аргументы командной строки.
// Значения по умолчанию берутся из переменных окружения HDCAM_*.
func (c *CLI) ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("hd-camera", flag.ContinueOnError)

	fs.StringVar(&cfg.Address, "addr", config.GetEnv("HDCAM_ADDR", ":8080"), "адрес HTTP сервера")
	fs.IntVar(&cfg.Width, "width", config.GetEnvInt("HDCAM_WIDTH", application.DefaultIdealWidth), "желаемая ширина видео")
	fs.IntVar(&cfg.Height, "height", config.GetEnvInt("HDCAM_HEIGHT", application.DefaultIdealHeight), "желаемая высота видео")
	fs.IntVar(&cfg.Quality, "quality", config.GetEnvInt("HDCAM_QUALITY", application.DefaultJPEGQuality), "качество JPEG (1-100)")
	fs.StringVar(&cfg.DeviceID, "device", config.GetEnv("HDCAM_DEVICE", ""), "ID камеры, пусто = тыловая камера автоматически")
	fs.StringVar(&cfg.OutputDir, "output", config.GetEnv("HDCAM_OUTPUT", "captures"), "директория для снимков")
	fs.IntVar(&cfg.PreviewFPS, "preview-fps", config.GetEnvInt("HDCAM_PREVIEW_FPS", 10), "частота кадров превью на странице")
	fs.IntVar(&cfg.PreviewWidth, "preview-width", config.GetEnvInt("HDCAM_PREVIEW_WIDTH", 640), "ширина кадров превью")
	fs.BoolVar(&cfg.Debug, "debug", config.GetEnvBool("HDCAM_DEBUG", false), "включить отладочные сообщения")
	fs.StringVar(&cfg.LogFormat, "log-format", config.GetEnv("HDCAM_LOG_FORMAT", "console"), "формат логов: console или json")
	fs.BoolVar(&cfg.ListDevices, "list-devices", false, "показать список доступных камер и выйти")
	fs.BoolVar(&cfg.Snap, "snap", false, "сделать один снимок и выйти")
	fs.BoolVar(&cfg.Headless, "headless", false, "без страницы: снимок по клавише + в терминале")
	fs.BoolVar(&cfg.Native, "native", config.GetEnvBool("HDCAM_NATIVE", false), "нативная оболочка: кнопка громкости недоступна")
	fs.BoolVar(&cfg.NoWakeLock, "no-wake-lock", config.GetEnvBool("HDCAM_NO_WAKE_LOCK", false), "не блокировать отключение экрана")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		return nil, fmt.Errorf("quality must be in 1..100, got %d", cfg.Quality)
	}

	c.config = cfg
	return cfg, nil
}

// Run запускает CLI до отмены контекста
func (c *CLI) Run(ctx context.Context) error {
	switch {
	case c.config.ListDevices:
		return c.listDevices(ctx)
	case c.config.Snap:
		return c.snap(ctx)
	case c.config.Headless:
		return c.headless(ctx)
	default:
		return c.serve(ctx)
	}
}

func (c *CLI) sessionOptions() application.SessionOptions {
	return application.SessionOptions{
		Native:          c.config.Native,
		InitialDeviceID: c.config.DeviceID,
		IdealWidth:      c.config.Width,
		IdealHeight:     c.config.Height,
		Quality:         c.config.Quality,
	}
}

// newTerminalSession сессия без страницы: уведомления пишутся в терминал
func (c *CLI) newTerminalSession() *application.CameraSession {
	return application.NewCameraSession(application.Dependencies{
		Media:      c.components.Media,
		WakeLocks:  c.components.WakeLocks,
		Encoder:    c.components.Encoder,
		Downloader: c.components.Store,
		Notifier:   &terminalNotifier{out: c.components.Output},
		Metrics:    c.components.Metrics,
		Logger:     c.components.Logger,
	}, c.sessionOptions())
}

// serve запускает страницу камеры; сессия живет, пока открыта хотя бы одна страница
func (c *CLI) serve(ctx context.Context) error {
	hub := c.components.Hub
	offer := web.NewDownloadOffer(c.components.Store, hub)

	lifecycle := application.NewPageLifecycle(
		func() *application.CameraSession {
			s := application.NewCameraSession(application.Dependencies{
				Media:      c.components.Media,
				WakeLocks:  c.components.WakeLocks,
				Visibility: hub,
				Encoder:    c.components.Encoder,
				Downloader: offer,
				Notifier:   hub,
				Metrics:    c.components.Metrics,
				Logger:     c.components.Logger,
			}, c.sessionOptions())
			s.OnChange(hub.BroadcastStatus)
			return s
		},
		func(s *application.CameraSession) {
			if s == nil {
				hub.Bind(nil)
				return
			}
			hub.Bind(s)
		},
		hub,
		c.components.Logger,
	)

	hub.SetLifecycle(
		func() {
			if err := lifecycle.Mount(ctx); err != nil {
				c.components.Logger.Debug("Камера не открыта: %v", err)
			}
		},
		func() {
			if err := lifecycle.Unmount(); err != nil {
				c.components.Logger.Error("Ошибка закрытия сессии: %v", err)
			}
		},
	)
	go hub.RunPreview(ctx, c.config.PreviewFPS, c.config.PreviewWidth)

	server := web.NewServer(hub, c.components.Store, c.components.Metrics.Handler(), c.components.Logger)
	err := server.Run(ctx, c.config.Address)

	if uerr := lifecycle.Unmount(); uerr != nil {
		c.components.Logger.Error("Ошибка закрытия сессии: %v", uerr)
	}
	return err
}

// snap делает один снимок, как только камера отдаст первый кадр
func (c *CLI) snap(ctx context.Context) error {
	session := c.newTerminalSession()
	defer session.Close()

	if err := session.Mount(ctx); err != nil {
		return err
	}

	deadline := time.NewTimer(snapTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(snapInterval)
	defer ticker.Stop()

	for {
		frame, err := session.Capture(ctx)
		if err != nil {
			return err
		}
		if frame != nil {
			fmt.Fprintf(c.components.Output, "Снимок сохранен: %s (%dx%d)\n", frame.Filename, frame.Width, frame.Height)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("camera produced no frame in time")
		case <-ticker.C:
		}
	}
}

// headless снимает кадр по каждому "+" в терминале до отмены контекста
func (c *CLI) headless(ctx context.Context) error {
	session := c.newTerminalSession()
	defer session.Close()

	if err := session.Mount(ctx); err != nil {
		return err
	}

	status := session.Status()
	fmt.Fprintln(c.components.Output, status.WakeLockText)

	trigger := keyboard.NewTrigger(ctx, c.components.Input, c.components.Logger)
	err := session.RunTrigger(ctx, trigger)
	switch {
	case errors.Is(err, domain.ErrTriggerUnsupported):
		fmt.Fprintln(c.components.Output, status.Guidance)
	case err != nil:
		return err
	case ctx.Err() == nil:
		// stdin закрыт (сервис или перенаправление), работаем до сигнала остановки
		c.components.Logger.Info("Ввод с клавиатуры завершен, ожидание сигнала остановки")
	}

	<-ctx.Done()
	return nil
}

// listDevices выводит список доступных устройств
func (c *CLI) listDevices(ctx context.Context) error {
	devices, err := c.components.Media.EnumerateDevices(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.components.Output, "Доступные камеры:")
	for i, device := range devices {
		fmt.Fprintf(c.components.Output, "[%d] %s (%s)\n", i, device.DisplayLabel(), device.ID)
	}

	return nil
}

// terminalNotifier выводит уведомления для пользователя в терминал
type terminalNotifier struct {
	out io.Writer
}

func (n *terminalNotifier) Alert(message string) {
	fmt.Fprintf(n.out, "!!! %s\n", message)
}
