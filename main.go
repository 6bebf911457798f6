package main

import (
	"secureChatServer/broker"
	"secureChatServer/config"
	"secureChatServer/manager"
	"secureChatServer/repository"
	"secureChatServer/server"
	"secureChatServer/service"
	"secureChatServer/storage"
	"secureChatServer/transport"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	db, err := storage.ConnectDB(storage.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := storage.EnsureSchema(db); err != nil {
		logrus.Fatalf("Failed to prepare schema: %v", err)
	}

	pushBroker, err := broker.NewPushBroker(cfg.Broker.URL)
	if err != nil {
		logrus.Fatalf("Failed to connect to broker: %v", err)
	}
	defer pushBroker.Close()

	userRepo := repository.NewUserRepo(db)
	friendRepo := repository.NewFriendshipRepository(db)
	offlineRepo := repository.NewOfflineRepository(db)

	sessions := manager.NewSessionManager()
	presence := manager.NewPresenceManager()

	exchangeService := service.NewKeyExchangeService(sessions, cfg.Exchange.StrictValidation)
	userService := service.NewUserService(userRepo)
	notifier := service.NewNotificationService(presence, pushBroker, offlineRepo, friendRepo)
	friendService := service.NewFriendService(friendRepo, userRepo, presence, notifier)

	handler := transport.NewHandler(
		sessions,
		presence,
		exchangeService,
		userService,
		friendService,
		notifier,
		pushBroker,
		cfg.Server.RequestTimeout,
	)

	srv := server.NewServer(handler)
	if err := srv.Start(cfg.Server.Address); err != nil {
		logrus.Fatalf("failed to start server: %v", err)
	}
}
