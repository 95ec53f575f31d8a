// Command yubimoji turns fingerspelled hand shapes seen by the camera into
// text. It serves the JSON API and web UI, runs the capture pipeline and
// shows the committed text in the menu bar.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/yubimoji/internal/app"
	"github.com/ayusman/yubimoji/internal/config"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/server"
	"github.com/ayusman/yubimoji/internal/store"
	"github.com/ayusman/yubimoji/internal/tray"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("yubimoji failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.ApplyEnv(os.LookupEnv)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	})))
	slog.Info("yubimoji starting", "version", version, "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	dbPath := cfg.Path(cfg.Store.Path)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	application, err := app.New(app.Options{Config: cfg, Store: st, Metrics: metrics})
	if err != nil {
		return err
	}
	processor := application.Processor()

	hub := server.NewHub(processor, metrics)
	processor.AddSink(app.BroadcastSink(hub))
	preview := server.NewPreview()
	application.SetPreview(preview)

	staticDir := cfg.Path(cfg.Server.StaticDir)
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		slog.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir:      staticDir,
		Store:          st,
		Session:        processor,
		Reloader:       application,
		Trainer:        application.Trainer(),
		Hub:            hub,
		Preview:        preview,
		Metrics:        metrics,
		MetricsHandler: promhttp.Handler(),
	})

	if configPath != "" {
		w, err := config.NewWatcher(configPath, func(_, next *config.Config) {
			if err := application.ApplyConfig(ctx, next); err != nil {
				slog.Warn("config change not applied", "err", err)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	var menu *tray.Tray
	if cfg.Server.Tray {
		menu = tray.New(application.IsEnabled())
		menu.OnToggle(application.SetEnabled)
		menu.OnClear(func() {
			if _, err := processor.Reset(ctx); err != nil {
				slog.Warn("clear text", "err", err)
			}
		})
		menu.OnSettings(func() { openBrowser(settingsURL(cfg.Server.Addr)) })
		menu.OnQuit(stop)
		processor.AddSink(app.TextSink(menu.SetText))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, cfg.Server.Addr) })
	g.Go(func() error { return application.Run(gctx) })

	if menu != nil {
		go func() {
			<-gctx.Done()
			menu.Quit()
		}()
		menu.Run()
		stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("yubimoji stopped")
	return nil
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

// findWebDir searches for the web UI in the working directory, next to the
// executable and in ~/.yubimoji/web.
func findWebDir() string {
	candidates := []string{"web", "../web", "../../web"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".yubimoji", "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		slog.Warn("cannot open browser", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		slog.Warn("open browser", "err", err)
	}
}
