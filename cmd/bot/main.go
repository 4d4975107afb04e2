package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/app"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/config"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	utils.InitLogger(cfg.LogLevel)

	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации сервисов: %v", err)
	}
	defer c.Close()

	fiberApp := fiber.New(fiber.Config{
		AppName:      "whatsapp-bot-store",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.SetupRoutes(fiberApp, c)

	go func() {
		utils.LogInfo(ctx, "🚀 сервер запущен", slog.String("port", cfg.Port))
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("❌ Ошибка запуска сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.LogInfo(ctx, "⏹ остановка сервера")
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("⚠️ Ошибка при остановке сервера: %v", err)
	}
}
