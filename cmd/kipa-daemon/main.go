package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/logger"
	"github.com/kipa-net/kipa/pkg/node"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/wire"
)

func main() {
	app := &cli.App{
		Name:  "kipa-daemon",
		Usage: "KIPA node daemon",
		Description: `Runs a KIPA node: a participant in the key-based node-locator network.

The daemon answers queries from remote nodes on the global TCP port and
serves search, connect, and list-neighbours requests from the local CLI
over a unix socket.`,
		Version: config.ProtocolVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key-id",
				Aliases:  []string{"k"},
				Usage:    "Eight-hex-character id of the local PGP key",
				EnvVars:  []string{config.EnvKeyID},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "TCP port for inter-node communication",
				EnvVars: []string{config.EnvPort},
			},
			&cli.StringFlag{
				Name:    "socket-path",
				Value:   config.DefaultSocketPath(),
				Usage:   "Unix socket path for the local CLI",
				EnvVars: []string{config.EnvSocketPath},
			},
			&cli.StringFlag{
				Name:    "keyring-dir",
				Value:   config.DefaultKeyringDir(),
				Usage:   "Directory holding exported armored keyrings (pubring.asc, secring.asc)",
				EnvVars: []string{config.EnvKeyringDir},
			},
			&cli.IntFlag{
				Name:    "neighbours-size",
				Value:   config.DefaultNeighboursSize,
				Usage:   "Capacity of the neighbours store",
				EnvVars: []string{config.EnvNeighbours},
			},
			&cli.IntFlag{
				Name:    "key-space-size",
				Value:   config.DefaultKeySpaceSize,
				Usage:   "Dimension of the key space",
				EnvVars: []string{config.EnvKeySpace},
			},
			&cli.IntFlag{
				Name:    "search-concurrency",
				Value:   config.DefaultSearchConcurrency,
				Usage:   "In-flight query RPCs per search",
				EnvVars: []string{config.EnvConcurrency},
			},
			&cli.StringFlag{
				Name:  "crypto-backend",
				Value: "pgp",
				Usage: "Envelope backend: pgp, or null for unauthenticated loopback testing",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvVerbose},
			},
		},
		Action: runDaemon,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}
}

func runDaemon(c *cli.Context) error {
	cfg := config.DefaultConfig()
	cfg.KeyID = c.String("key-id")
	cfg.Port = c.Int("port")
	cfg.SocketPath = c.String("socket-path")
	cfg.KeyringDir = c.String("keyring-dir")
	cfg.NeighboursSize = c.Int("neighbours-size")
	cfg.KeySpaceSize = c.Int("key-space-size")
	cfg.SearchConcurrency = c.Int("search-concurrency")
	cfg.Verbose = c.Bool("verbose")

	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	keyStore, err := pgp.NewKeyStore(cfg.KeyringDir, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to load keyrings: %w", err)
	}
	localSecret, err := keyStore.SecretKey(cfg.KeyID)
	if err != nil {
		return fmt.Errorf("failed to resolve local key %s: %w", cfg.KeyID, err)
	}

	var keyHandler pgp.IKeyHandler
	switch c.String("crypto-backend") {
	case "pgp":
		keyHandler = pgp.NewKeyHandler(zapLogger)
	case "null":
		keyHandler = pgp.NewNullKeyHandler()
	default:
		return fmt.Errorf("unknown crypto backend %q", c.String("crypto-backend"))
	}

	n, err := node.NewNode(cfg, localSecret, keyHandler, wire.NewJSONCodec(), zapLogger)
	if err != nil {
		return fmt.Errorf("failed to build node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer func() { _ = n.Stop() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zapLogger.Sugar().Infow("Shutting down")
	return nil
}
