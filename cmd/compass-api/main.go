package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/config"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/database"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/followup"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ocr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/server"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/tasks"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "compass-api",
		Short: "Conference Compass backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres connection string")
	cmd.PersistentFlags().String("sso-audience", defaults.GetString("sso.audience"), "SSO client audience")
	cmd.PersistentFlags().String("sso-jwks-url", defaults.GetString("sso.jwks_url"), "SSO JWKS URL")
	cmd.PersistentFlags().StringSlice("sso-issuers", defaults.GetStringSlice("sso.issuers"), "Accepted SSO issuers")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("llm-base-url", defaults.GetString("llm.base_url"), "Language model endpoint base URL")
	cmd.PersistentFlags().String("llm-model", defaults.GetString("llm.model"), "Language model name")
	cmd.PersistentFlags().Int("deadline-hours", defaults.GetInt("tasks.deadline_hours"), "Engagement deadline window in hours")
	cmd.PersistentFlags().Int("urgent-threshold-minutes", defaults.GetInt("tasks.urgent_threshold_minutes"), "Urgency threshold in minutes")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "sso.audience", "sso-audience")
	bindFlag(cmd, "sso.jwks_url", "sso-jwks-url")
	bindFlag(cmd, "sso.issuers", "sso-issuers")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "llm.base_url", "llm-base-url")
	bindFlag(cmd, "llm.model", "llm-model")
	bindFlag(cmd, "tasks.deadline_hours", "deadline-hours")
	bindFlag(cmd, "tasks.urgent_threshold_minutes", "urgent-threshold-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabasePath, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "compass-auth",
		Audience:      "compass-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	ssoVerifier, err := auth.NewSSOVerifier(auth.SSOVerifierConfig{
		Audience:       appConfig.SSOAudience,
		JWKSURL:        appConfig.SSOJWKSURL,
		AllowedIssuers: appConfig.SSOIssuers,
	})
	if err != nil {
		return err
	}

	dispatcher := realtime.NewDispatcher()

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	teamService, err := team.NewService(team.ServiceConfig{
		Database:   db,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	activityService, err := activity.NewService(activity.ServiceConfig{
		Database:   db,
		Dispatcher: dispatcher,
		Clock:      time.Now,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:       db,
		Activity:       activityService,
		Clock:          time.Now,
		IDProvider:     activity.NewUUIDProvider(),
		Logger:         logger,
		DeadlineWindow: appConfig.DeadlineWindow,
	})
	if err != nil {
		return err
	}
	contactsService, err := contacts.NewService(contacts.ServiceConfig{
		Database:   db,
		Activity:   activityService,
		Clock:      time.Now,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	feedManager, err := activity.NewFeedManager(activity.FeedConfig{
		Service:    activityService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer feedManager.Shutdown()

	scheduler, err := notify.NewScheduler(notify.SchedulerConfig{
		Sender: &notify.LogSender{Logger: logger},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer scheduler.Shutdown()

	var followupGenerator *followup.Generator
	if appConfig.LLMAPIKey != "" {
		model, err := followup.NewOpenAIModel(followup.ModelConfig{
			BaseURL: appConfig.LLMBaseURL,
			Model:   appConfig.LLMModel,
			APIKey:  appConfig.LLMAPIKey,
		})
		if err != nil {
			return err
		}
		followupGenerator, err = followup.NewGenerator(followup.GeneratorConfig{
			Contacts: contactsService,
			Model:    model,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("llm api key not configured, followup generation disabled")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SSOVerifier:     ssoVerifier,
		TokenManager:    tokenManager,
		UsersService:    usersService,
		TeamService:     teamService,
		ActivityService: activityService,
		PostsService:    postsService,
		ContactsService: contactsService,
		Feeds:           feedManager,
		Followup:        followupGenerator,
		Scanner:         ocr.NewScanner(nil, logger),
		Dispatcher:      dispatcher,
		Scheduler:       scheduler,
		TaskConfig:      tasks.Config{UrgentThreshold: appConfig.UrgentThreshold},
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
