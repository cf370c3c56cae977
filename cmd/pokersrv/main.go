package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/vctt94/pokerroom/pkg/logging"
	"github.com/vctt94/pokerroom/pkg/server"
	"github.com/vctt94/pokerroom/pkg/utils"
)

// CLI holds the server flags. Flags override the config file.
type CLI struct {
	Config      string        `help:"Path to the HCL config file (defaults apply when missing)" type:"path"`
	DataDir     string        `name:"datadir" help:"Directory for the database and logs" type:"path"`
	DB          string        `name:"db" help:"Path to SQLite database file (created if missing); 'memory' keeps rooms in memory"`
	Host        string        `help:"Host to listen on"`
	Port        int           `help:"Port to listen on (0 for a random free port)" default:"-1"`
	PortFile    string        `name:"portfile" help:"If set, write selected port to this file"`
	DebugLevel  string        `name:"debuglevel" help:"Logging level: trace, debug, info, warn, error, or SUBSYS=level pairs"`
	LogFile     string        `name:"logfile" help:"Path to log file"`
	MaxLogFiles int           `name:"maxlogfiles" help:"Maximum number of rotated log files"`
	Seed        int64         `help:"Deterministic deck seed for configured rooms (0 = random)" env:"POKER_SEED"`
	TurnTimeout time.Duration `name:"turn-timeout" help:"Default time a player has to act (0 disables timeouts)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokersrv"),
		kong.Description("Texas Hold'em room server"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(run(&cli))
}

// loadConfig merges the config file with the flags.
func loadConfig(cli *CLI) (*server.Config, error) {
	cfg, err := server.LoadConfig(cli.Config)
	if err != nil {
		return nil, err
	}
	s := cfg.Server
	if cli.Host != "" {
		s.Host = cli.Host
	}
	if cli.Port >= 0 {
		s.Port = cli.Port
	}
	if cli.DB != "" {
		s.DBPath = cli.DB
	}
	if cli.DebugLevel != "" {
		s.DebugLevel = cli.DebugLevel
	}
	if cli.LogFile != "" {
		s.LogFile = cli.LogFile
	}
	if cli.MaxLogFiles > 0 {
		s.MaxLogFiles = cli.MaxLogFiles
	}
	if cli.Seed != 0 {
		s.Seed = cli.Seed
	}
	if cli.TurnTimeout > 0 {
		s.TurnTimeout = cli.TurnTimeout
	}

	if cli.DataDir != "" {
		if err := utils.EnsureDataDirExists(cli.DataDir); err != nil {
			return nil, err
		}
		if s.DBPath == "" {
			s.DBPath = filepath.Join(cli.DataDir, "pokerroom.sqlite")
		}
		if s.LogFile == "" {
			s.LogFile = filepath.Join(cli.DataDir, "logs", "pokersrv.log")
		}
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(os.TempDir(), "pokerroom.sqlite")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reloadDebugLevel re-reads the config and applies its debug level to the
// running loggers.
func reloadDebugLevel(cli *CLI, logBackend *logging.LogBackend) {
	log := logBackend.Logger("SRVR")
	cfg, err := loadConfig(cli)
	if err != nil {
		log.Errorf("Reload failed: %v", err)
		return
	}
	if err := logBackend.SetLevels(cfg.Server.DebugLevel); err != nil {
		log.Errorf("Reload failed: %v", err)
		return
	}
	log.Infof("Debug level set to %q", cfg.Server.DebugLevel)
}

func run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("configuration error: %v", err)
	}
	s := cfg.Server

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     s.LogFile,
		DebugLevel:  s.DebugLevel,
		MaxLogFiles: s.MaxLogFiles,
	})
	if err != nil {
		return fmt.Errorf("failed to init logging: %v", err)
	}
	defer logBackend.Close()
	log := logBackend.Logger("SRVR")

	var store server.Store
	if s.DBPath == "memory" {
		store = server.NewMemoryStore()
		log.Infof("Keeping rooms in memory")
	} else {
		db, err := server.NewDatabase(s.DBPath)
		if err != nil {
			return fmt.Errorf("failed to init db: %v", err)
		}
		defer db.Close()
		store = server.NewSQLStore(db, logBackend.Logger("DB"), nil)
		log.Infof("Using database %s", s.DBPath)
	}

	srv := server.NewServer(store, logBackend, server.Options{
		EventWorkers:   s.EventWorkers,
		EventQueueSize: s.EventQueueSize,
	})
	defer srv.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.EnsureRooms(ctx, cfg); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	if cli.PortFile != "" {
		_, p, _ := net.SplitHostPort(lis.Addr().String())
		if err := os.WriteFile(cli.PortFile, []byte(p), 0600); err != nil {
			return fmt.Errorf("failed to write port file: %v", err)
		}
	}
	log.Infof("Listening on %s", lis.Addr())

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				reloadDebugLevel(cli, logBackend)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
