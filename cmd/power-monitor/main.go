// Command power-monitor watches a mains-presence probe and notifies on power
// loss and restoration.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/power-monitor/internal/cell"
	"github.com/sweeney/power-monitor/internal/config"
	"github.com/sweeney/power-monitor/internal/gpio"
	"github.com/sweeney/power-monitor/internal/history"
	"github.com/sweeney/power-monitor/internal/logging"
	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/metrics"
	"github.com/sweeney/power-monitor/internal/monitor"
	"github.com/sweeney/power-monitor/internal/notify"
	"github.com/sweeney/power-monitor/internal/status"
	"github.com/sweeney/power-monitor/internal/web"
)

var version = "dev"

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:           "power-monitor",
		Short:         "Mains power outage monitor",
		Long:          "Watches a mains-presence probe and sends a notification with the outage or uptime duration whenever power is lost or restored.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the monitor daemon",
		RunE:  runDaemon,
	}

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Print the probe, the stored state and the last transition, then exit",
		RunE:  printState,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Print the stored transition log",
		RunE:  printHistory,
	}

	resetCellCmd = &cobra.Command{
		Use:   "reset-cell",
		Short: "Reinitialise the stored state to ON",
		RunE:  resetCell,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "power-monitor %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Configuration file path")
	rootCmd.AddCommand(runCmd, stateCmd, historyCmd, resetCellCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Line, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	medium, c, err := openCell(cfg)
	if err != nil {
		return err
	}
	defer medium.Close()

	hist, err := openLog(cfg, logger)
	if err != nil {
		return err
	}

	minValid, err := cfg.MinValid()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	notifier := notify.NewBreaker(transport, notify.BreakerConfig{
		MaxFailures: cfg.Notify.Breaker.MaxFailures,
		OpenTimeout: cfg.Notify.Breaker.OpenTimeout,
	}, logger)
	defer notifier.Close()

	mon := monitor.New(monitor.Config{
		Signal:        reader,
		Cell:          c,
		Log:           hist,
		Notifier:      notifier,
		Clock:         monitor.SystemClock(minValid),
		NotifyTimeout: cfg.Notify.Timeout,
		Logger:        logger,
	})
	sess := &monitor.Session{}
	if err := mon.Init(sess); err != nil {
		logger.Error().Err(err).Msg("cell initialisation failed, polling will retry")
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:        cfg.Poll.Interval.Milliseconds(),
		NotifyTimeout: cfg.Notify.Timeout.Milliseconds(),
		Transport:     cfg.Notify.Transport,
		Target:        cfg.Target(),
		HTTPAddr:      cfg.HTTP.Addr,
		LogCapacity:   cfg.Storage.LogCapacity,
	})
	tracker.SetSession(*sess)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	recorder := metrics.NewRecorder()

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, recorder.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	logger.Info().
		Str("version", version).
		Dur("poll", cfg.Poll.Interval).
		Str("transport", cfg.Notify.Transport).
		Str("target", cfg.Target()).
		Msg("started")

	ticker := time.NewTicker(cfg.Poll.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		monitor:  mon,
		session:  sess,
		history:  hist,
		tracker:  tracker,
		recorder: recorder,
		conn:     notifier,
		log:      logger,
	}
	return runLoop(ctx, d, time.Now, ticker.C, sigCh)
}

// daemon bundles what the poll loop touches.
type daemon struct {
	monitor  *monitor.Monitor
	session  *monitor.Session
	history  *history.Log
	tracker  *status.Tracker
	recorder *metrics.Recorder
	conn     notify.ConnectionStatus
	log      zerolog.Logger
}

func runLoop(ctx context.Context, d *daemon, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.refreshHistory()

	for {
		select {
		case s := <-sig:
			d.log.Info().Str("signal", s.String()).Msg("shutting down")
			return nil

		case <-tick:
			res := d.monitor.Poll(ctx, d.session)

			if d.tracker != nil {
				d.tracker.Observe(now(), res, *d.session)
				if d.conn != nil {
					d.tracker.SetNotifierConnected(d.conn.IsConnected())
				}
			}
			if d.recorder != nil {
				d.recorder.Observe(res, *d.session)
			}

			switch res.Outcome {
			case monitor.OutcomeStable:
			case monitor.OutcomeNotified:
				d.refreshHistory()
			case monitor.OutcomeSignalError:
				d.log.Warn().Err(res.Err).Msg("probe read error")
			default:
				d.log.Debug().Str("outcome", string(res.Outcome)).Err(res.Err).Msg("poll")
			}
		}
	}
}

func (d *daemon) refreshHistory() {
	if d.tracker == nil {
		return
	}
	records, err := d.history.LoadAll()
	if err != nil {
		d.log.Warn().Err(err).Msg("read transition log")
		return
	}
	d.tracker.SetHistory(records)
}

func openCell(cfg *config.Config) (*cell.FileMedium, *cell.Cell, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create storage dir: %w", err)
	}
	medium, err := cell.OpenFile(cfg.CellPath(), cfg.Storage.CellSize)
	if err != nil {
		return nil, nil, fmt.Errorf("open cell: %w", err)
	}
	return medium, cell.New(medium, cfg.Storage.CellAddr), nil
}

func openLog(cfg *config.Config, logger zerolog.Logger) (*history.Log, error) {
	storage, err := history.NewFileStorage(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open log storage: %w", err)
	}
	return history.New(storage, cfg.Storage.LogFile, cfg.Storage.LogCapacity,
		history.WithLogger(logger.With().Str("component", "history").Logger())), nil
}

func newNotifier(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.Notifier, error) {
	switch cfg.Notify.Transport {
	case config.TransportMQTT:
		return notify.NewMQTTNotifier(ctx, notify.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Topic:          cfg.MQTT.Topic,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			ConnectRetries: cfg.MQTT.ConnectRetries,
			Texts:          cfg.Texts(),
		}, logger)
	case config.TransportTelegram:
		return notify.NewTelegramNotifier(notify.TelegramConfig{
			APIURL: cfg.Telegram.APIURL,
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
			Texts:  cfg.Texts(),
		}, &http.Client{Timeout: cfg.Notify.Timeout})
	case config.TransportLog:
		return notify.NewLogNotifier(logger, cfg.Texts()), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Notify.Transport)
	}
}

func printState(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Line, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	medium, c, err := openCell(cfg)
	if err != nil {
		return err
	}
	defer medium.Close()

	hist, err := openLog(cfg, zerolog.Nop())
	if err != nil {
		return err
	}

	return writeState(cmd.OutOrStdout(), reader, c, hist, time.Now())
}

func printHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	storage, err := history.NewFileStorage(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open log storage: %w", err)
	}
	return writeHistory(cmd.OutOrStdout(), storage, cfg.Storage.LogFile, time.Now())
}

func resetCell(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	medium, c, err := openCell(cfg)
	if err != nil {
		return err
	}
	defer medium.Close()

	if err := c.Reinit(); err != nil {
		return fmt.Errorf("reset cell: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cell at %s:%d reset to %s\n", cfg.CellPath(), c.Addr(), logic.StateOn)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
