package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"expenses/api"
	"expenses/auth"
	"expenses/config"
	"expenses/events"
	"expenses/logger"
	"expenses/queue"
	"expenses/store"
	"expenses/users"
)

func main() {
	settingsPath := flag.String("settings", config.GetEnv("SETTINGS_FILE", "settings.yaml"), "path to YAML settings")
	flag.Parse()

	logger.SetOutput(logger.With(logger.FieldKV("service", "expenses-api")))
	logger.Info("starting application")
	if err := run(*settingsPath); err != nil {
		logger.Error("application stopped", err)
		os.Exit(1)
	}
}

func run(settingsPath string) error {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewPostgres(settings.ConnectionString)
	if err != nil {
		return err
	}
	defer repo.Close()
	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = repo.Migrate(migrateCtx)
	cancel()
	if err != nil {
		return err
	}

	publisher, err := newPublisher(settings)
	if err != nil {
		return err
	}
	defer publisher.Close()

	creds, err := auth.NewCredentials(settings.BasicAPIUser, settings.BasicAPIUserPassword)
	if err != nil {
		return err
	}
	validator, err := api.NewRequestValidator()
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Deps{
		Repo:      repo,
		Users:     users.NewClient(settings.UsersServicePath, nil),
		Publisher: publisher,
		Auth:      creds,
		Validator: validator,
		Transport: settings.EventTransport,
		Ready:     repo.Ping,
	})
	httpSrv := &http.Server{Addr: ":" + settings.APIPort, Handler: srv, ReadHeaderTimeout: 5 * time.Second}

	errC := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.FieldKV("port", settings.APIPort), logger.FieldKV("transport", settings.EventTransport))
		errC <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newPublisher(s config.Settings) (events.Publisher, error) {
	if s.EventTransport == config.TransportKafka {
		return events.NewKafkaPublisher(s.KafkaBroker, s.KafkaTopic, s.KafkaErrorTopic), nil
	}
	return events.DialRabbit(queue.Config{
		Host:     s.RabbitMQHost,
		Port:     strconv.Itoa(s.RabbitMQPort),
		Username: s.RabbitMQUsername,
		Password: s.RabbitMQPassword,
		VHost:    s.RabbitMQVHost,
	})
}
