package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edward-ap/radiowatch/internal/announce"
	"github.com/edward-ap/radiowatch/internal/controller"
	"github.com/edward-ap/radiowatch/internal/monitor"
	"github.com/edward-ap/radiowatch/internal/playback"
	"github.com/edward-ap/radiowatch/internal/retriever"
)

var (
	flagVolume     int
	flagNoAnnounce bool
)

var playCmd = &cobra.Command{
	Use:   "play [station]",
	Short: "Play a station and announce track changes until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().IntVar(&flagVolume, "volume", -1, "initial volume 0-100 (default: config)")
	playCmd.Flags().BoolVar(&flagNoAnnounce, "no-announce", false, "start with announcements muted")
}

// stdoutSink prints track announcements the way the voice plugin spoke them.
type stdoutSink struct{}

func (stdoutSink) Announce(title, artist string) {
	if artist != "" {
		fmt.Printf("Now playing: %s - %s\n", artist, title)
		return
	}
	fmt.Printf("Now playing: %s\n", title)
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	volume := cfg.Volume
	if flagVolume >= 0 {
		volume = flagVolume
	}

	backend := playback.NewVLC()
	if err := backend.Init(volume); err != nil {
		return errors.Wrap(err, "init playback backend")
	}
	defer backend.Release()

	enabled := cfg.AnnouncementsEnabled() && !flagNoAnnounce
	lock := &announce.CommandLock{}
	dispatcher := announce.New(announce.Config{
		SuppressionWindow: cfg.SuppressionWindow(),
		Enabled:           enabled,
	}, stdoutSink{}, lock, logger)

	ctx := context.Background()
	if err := services.StartAndAwaitRunning(ctx, dispatcher); err != nil {
		return errors.Wrap(err, "start announcement dispatcher")
	}
	defer func() { _ = services.StopAndAwaitTerminated(context.Background(), dispatcher) }()

	registry := retriever.NewRegistry(nil, retriever.NewBackendSource(backend), slogPrintf{logger})

	ctrl := controller.New(controller.Config{
		DefaultStation:  cfg.DefaultStation,
		DefaultVolume:   volume,
		CommandLockHold: cfg.CommandLockHold(),
		Monitor: monitor.Config{
			LazyInterval:   cfg.LazyPoll(),
			ActiveInterval: cfg.ActivePoll(),
			FetchTimeout:   cfg.FetchTimeout(),
		},
	}, cat, registry, backend, dispatcher, lock, logger)

	station := ""
	if len(args) == 1 {
		station = args[0]
	}
	msg, err := ctrl.Play(ctx, station)
	if err != nil {
		return err
	}
	fmt.Println(msg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctrl.Shutdown(shutdownCtx)
	fmt.Println("Radio stopped.")
	return nil
}
