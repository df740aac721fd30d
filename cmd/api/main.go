package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/logger"
	"github.com/rajivgeraev/bazaar-api/internal/metrics"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/services/auth"
	"github.com/rajivgeraev/bazaar-api/internal/services/favorite"
	"github.com/rajivgeraev/bazaar-api/internal/services/listing"
	"github.com/rajivgeraev/bazaar-api/internal/services/message"
	"github.com/rajivgeraev/bazaar-api/internal/services/profile"
	"github.com/rajivgeraev/bazaar-api/internal/storage"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

func main() {
	migrate := flag.Bool("migrate", false, "применить миграции перед запуском")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("❌ Ошибка конфигурации: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.IsProduction())

	// Инициализируем базу данных
	conn, err := db.Open(cfg.Database)
	if err != nil {
		logrus.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer conn.Close()

	if *migrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Apply(ctx, conn)
		cancel()
		if err != nil {
			logrus.Fatalf("❌ Ошибка миграций: %v", err)
		}
	}

	files, err := storage.New(cfg)
	if err != nil {
		logrus.Fatalf("❌ Ошибка инициализации хранилища: %v", err)
	}

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Bazaar API",
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: errorHandler,
	})

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	defer limiter.Stop()

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		ctx, cancel := db.GetContext()
		defer cancel()
		if err := conn.PingContext(ctx); err != nil {
			return utils.SendError(c, apperr.Wrap(apperr.KindNetwork, "база данных недоступна", err))
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if memory, ok := files.(*storage.MemoryStore); ok {
		app.Get("/uploads/:bucket/*", func(c fiber.Ctx) error {
			data, found := memory.Get(c.Params("bucket"), c.Params("*"))
			if !found {
				return utils.SendError(c, apperr.NotFound("файл не найден"))
			}
			return c.Send(data)
		})
	}

	app.Use(limiter.Middleware())

	// Создаём сервисы
	jwtService := utils.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	profiles := db.NewProfileRepository(conn)

	authService := auth.NewAuthService(cfg, db.NewAccountRepository(conn), profiles, jwtService)
	defer authService.Close()

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	listing.NewListingService(cfg, db.NewListingRepository(conn), files, jwtService).SetupRoutes(app)
	favorite.NewFavoriteService(db.NewFavoriteRepository(conn), jwtService).SetupRoutes(app)
	message.NewMessageService(db.NewMessageRepository(conn), jwtService).SetupRoutes(app)
	profile.NewProfileService(cfg, profiles, files, jwtService).SetupRoutes(app)

	// Запускаем сервер
	go func() {
		logrus.Infof("✅ Bazaar API запущен на порту %s", cfg.Server.Port)
		if err := app.Listen(":"+cfg.Server.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			logrus.Fatalf("❌ Ошибка сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Остановка сервера...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Error("Ошибка при остановке сервера")
	}
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	return utils.SendError(c, err)
}
