package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nstehr/vimy/vimy-instance/agent"
	"github.com/nstehr/vimy/vimy-instance/config"
	"github.com/nstehr/vimy/vimy-instance/instance"
	"github.com/nstehr/vimy/vimy-instance/ipc"
	"github.com/nstehr/vimy/vimy-instance/journal"
	"github.com/nstehr/vimy/vimy-instance/registry"
	"github.com/nstehr/vimy/vimy-instance/rules"
	"github.com/nstehr/vimy/vimy-instance/sim"
	"github.com/nstehr/vimy/vimy-instance/telemetry"
	"github.com/nstehr/vimy/vimy-instance/transport/ws"
)

const banner = `
██╗   ██╗██╗███╗   ███╗██╗   ██╗
██║   ██║██║████╗ ████║╚██╗ ██╔╝
██║   ██║██║██╔████╔██║ ╚████╔╝
╚██╗ ██╔╝██║██║╚██╔╝██║  ╚██╔╝
 ╚████╔╝ ██║██║ ╚═╝ ██║   ██║
  ╚═══╝  ╚═╝╚═╝     ╚═╝   ╚═╝

Multiplayer Instance Bridge`

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	fmt.Println(banner)

	if err := run(cfg); err != nil {
		slog.Error("vimy-instance failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "vimy-instance")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	ruleEngine, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		if seed, err = registry.CryptoSeed(); err != nil {
			return err
		}
	}
	slog.Info("match seed", "seed", seed)

	opts := instance.Options{
		Engine:           sim.New(nil, cfg.BuildStep),
		Rules:            ruleEngine,
		OutgoingCapacity: cfg.OutgoingCapacity,
		PendingCapacity:  cfg.PendingCapacity,
		CommandDelay:     uint32(cfg.CommandDelay),
		Seed:             seed,
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts.Recorder = j
		slog.Info("command journal enabled", "path", cfg.JournalPath)
	}

	inst, err := instance.New(opts)
	if err != nil {
		return err
	}
	defer inst.Stop()

	if cfg.MatchFile != "" {
		m, err := config.LoadMatch(cfg.MatchFile)
		if err != nil {
			return err
		}
		if err := inst.RegisterPlayers(m.Players, m.Options()); err != nil {
			return fmt.Errorf("register match: %w", err)
		}
		slog.Info("match registered", "file", cfg.MatchFile, "players", len(m.Players), "instance", inst.ID())
	}

	if cfg.WSAddr != "" {
		srv := &http.Server{Addr: cfg.WSAddr, Handler: ws.NewServer(inst, cfg.SaveDir).Handler()}
		go func() {
			slog.Info("listening on websocket", "addr", cfg.WSAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("websocket server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return fmt.Errorf("clean up socket: %w", err)
	}
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	defer listener.Close()
	defer os.Remove(cfg.SocketPath)

	slog.Info("listening on domain socket", "path", cfg.SocketPath)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(conn, inst, cfg.SaveDir)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func loadRules(path string) (*rules.Engine, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	rs, err := rules.Load(f)
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(rs)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	slog.Info("rules loaded", "file", path, "rules", len(rs))
	return engine, nil
}

func handleConn(conn net.Conn, inst *instance.Instance, saveDir string) {
	c := ipc.NewConnection(conn, nil)
	a := agent.New(inst, c)
	a.SaveDir = saveDir
	a.Attach()
	defer a.Detach()
	for msgType, h := range a.Handlers() {
		c.RegisterHandler(msgType, h)
	}
	c.ReadLoop()
}
