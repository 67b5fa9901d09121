package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brawl345/remindbot/bot"
	"github.com/Brawl345/remindbot/config"
	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/platform"
	"github.com/Brawl345/remindbot/plugin"
	"github.com/Brawl345/remindbot/plugin/reminders"
	"github.com/Brawl345/remindbot/scheduler"
	"github.com/Brawl345/remindbot/storage"
	"github.com/Brawl345/remindbot/utils"
	"github.com/benbjohnson/clock"
	_ "github.com/joho/godotenv/autoload"
)

var log = logger.New("main")

func newDispatcher(cfg *config.Config) (model.Dispatcher, error) {
	switch cfg.Dispatcher {
	case config.DispatcherSlack:
		return platform.NewSlack(cfg.SlackBotToken), nil
	case config.DispatcherTelegram:
		return platform.NewTelegram(cfg.TelegramBotToken)
	default:
		log.Warn().Msg("Using the log dispatcher, nothing will be sent")
		return platform.Log{}, nil
	}
}

func main() {
	versionInfo, err := utils.ReadVersionInfo()
	if err != nil {
		log.Info().Msg("Remindbot (no version info)")
	} else {
		log.Info().Msgf("Remindbot-%s, %s", versionInfo.Revision, versionInfo.LastCommit)
		log.Info().Msgf("Built with %s for %s/%s", versionInfo.GoVersion, versionInfo.GoOS, versionInfo.GoArch)
		if versionInfo.DirtyBuild {
			log.Warn().Msg("This is a dirty build")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	d, err := newDispatcher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dispatcher")
	}
	dispatcher := platform.NewLimited(d, cfg.OutboundRate, cfg.OutboundBurst)

	reminderScheduler := scheduler.New(storage.NewReminders(), dispatcher, clock.New(), scheduler.Config{
		Location:      utils.LoadTimezone(cfg.Timezone),
		MinLeadTime:   cfg.MinLeadTime,
		SweepInterval: cfg.SweepInterval,
		Mode:          cfg.DeliveryMode,
		MaxPerUser:    cfg.MaxRemindersPerUser,
	})

	plugins := []plugin.Plugin{
		reminders.New(reminderScheduler, &reminders.Parser{
			Lookup:             dispatcher,
			AllowAutomatedSelf: cfg.AllowAutomatedSelf,
			Fallback:           cfg.MentionFallback,
		}, reminders.Options{
			FollowupKeywords: cfg.FollowupKeywords,
			FollowupDelay:    cfg.FollowupDelay,
			MinLeadTime:      cfg.MinLeadTime,
		}),
	}

	for i, plg := range plugins {
		log.Info().Msgf("Registering plugin (%d/%d): %s", i+1, len(plugins), plg.Name())
	}

	processor := bot.NewProcessor(cfg.BotUserID, clock.New(), plugins...)
	processor.PrintMessages(cfg.PrintMessages)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reminderScheduler.Start(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           bot.NewServer(processor).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Err(err).Msg("Failed to shut down server")
	}

	processor.Wait()
	reminderScheduler.Stop()
}
