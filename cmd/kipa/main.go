package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/kipa-net/kipa/pkg/client"
	"github.com/kipa-net/kipa/pkg/config"
	"github.com/kipa-net/kipa/pkg/logger"
	"github.com/kipa-net/kipa/pkg/pgp"
	"github.com/kipa-net/kipa/pkg/types"
	"github.com/kipa-net/kipa/pkg/wire"
)

func main() {
	app := &cli.App{
		Name:    "kipa",
		Usage:   "Talk to a running KIPA daemon",
		Version: config.ProtocolVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket-path",
				Value:   config.DefaultSocketPath(),
				Usage:   "Unix socket path of the daemon",
				EnvVars: []string{config.EnvSocketPath},
			},
			&cli.StringFlag{
				Name:    "keyring-dir",
				Value:   config.DefaultKeyringDir(),
				Usage:   "Directory holding exported armored keyrings",
				EnvVars: []string{config.EnvKeyringDir},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Locate the node that owns a key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key-id",
						Usage:    "Eight-hex-character id of the key to locate",
						Required: true,
					},
				},
				Action: runSearch,
			},
			{
				Name:  "connect",
				Usage: "Join the network via a known node",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key-id",
						Usage:    "Eight-hex-character id of the bootstrap node's key",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "address",
						Usage:    "ip:port of the bootstrap node",
						Required: true,
					},
				},
				Action: runConnect,
			},
			{
				Name:   "list-neighbours",
				Usage:  "Show the daemon's current neighbours",
				Action: runListNeighbours,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func newLocalClient(c *cli.Context) *client.LocalClient {
	return client.NewLocalClient(
		c.String("socket-path"), wire.NewJSONCodec(), config.DefaultSearchTimeout)
}

func resolveKey(c *cli.Context, keyID string) (*types.Key, error) {
	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		return nil, err
	}
	keyStore, err := pgp.NewKeyStore(c.String("keyring-dir"), zapLogger)
	if err != nil {
		return nil, err
	}
	return keyStore.Key(keyID)
}

func runSearch(c *cli.Context) error {
	key, err := resolveKey(c, c.String("key-id"))
	if err != nil {
		return err
	}
	found, err := newLocalClient(c).Search(key)
	if err != nil {
		return err
	}
	if found == nil {
		color.Yellow("Key %s not found", key.ID())
		return nil
	}
	color.Green("Found %s at %s", found.Key.ID(), found.Address)
	return nil
}

func runConnect(c *cli.Context) error {
	key, err := resolveKey(c, c.String("key-id"))
	if err != nil {
		return err
	}
	address, err := types.ParseAddress(c.String("address"))
	if err != nil {
		return err
	}
	if err := newLocalClient(c).Connect(types.NewNode(key, address)); err != nil {
		return err
	}
	color.Green("Connected via %s", key.ID())
	return nil
}

func runListNeighbours(c *cli.Context) error {
	nodes, err := newLocalClient(c).ListNeighbours()
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Println("No neighbours")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key ID", "Address"})
	for _, n := range nodes {
		table.Append([]string{n.Key.ID(), n.Address.String()})
	}
	table.Render()
	return nil
}
