package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hd-camera/internal/application"
	"hd-camera/internal/infrastructure/camera"
	"hd-camera/internal/infrastructure/config"
	"hd-camera/internal/infrastructure/imaging"
	"hd-camera/internal/infrastructure/logger"
	"hd-camera/internal/infrastructure/metrics"
	"hd-camera/internal/infrastructure/storage"
	"hd-camera/internal/infrastructure/wakelock"
	"hd-camera/internal/infrastructure/web"
	"hd-camera/internal/presentation/cli"
)

func main() {
	// Подхватываем .env, если он есть
	if err := config.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Файл .env не загружен: %v", err)
	}

	// Создаем CLI интерфейс для парсинга флагов
	cliApp := cli.NewCLI(nil)
	cfg, err := cliApp.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Ошибка: %v", err)
	}

	// Инициализируем логгер
	zlog, err := logger.NewZapLogger(cfg.Debug, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zlog.Sync()

	// Инициализируем инфраструктурные компоненты
	store, err := storage.NewFileStore(cfg.OutputDir, zlog)
	if err != nil {
		log.Fatalf("Ошибка: %v", err)
	}

	var wakeLocks application.WakeLockCapability = wakelock.NewInhibitor(zlog)
	if cfg.NoWakeLock {
		wakeLocks = wakelock.Unsupported{}
	}

	met := metrics.New()
	encoder := imaging.NewJPEGEncoder()

	cliApp = cli.NewCLI(&cli.Components{
		Media:     camera.NewMediaDevicesManager(zlog),
		WakeLocks: wakeLocks,
		Encoder:   encoder,
		Store:     store,
		Metrics:   met,
		Hub:       web.NewHub(encoder, met, zlog),
		Logger:    zlog,
		Input:     os.Stdin,
		Output:    os.Stdout,
	})
	cliApp.SetConfig(cfg) // конфигурация уже разобрана

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Запускаем CLI
	if err := cliApp.Run(ctx); err != nil && ctx.Err() == nil {
		zlog.Error("Ошибка: %v", err)
		zlog.Sync()
		os.Exit(1)
	}
}
