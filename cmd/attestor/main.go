package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/message-relay-backend/api/clients"
	"github.com/ruteri/message-relay-backend/attestor"
	"github.com/ruteri/message-relay-backend/cmd/flags"
	"github.com/ruteri/message-relay-backend/cryptoutils"
)

var attestorFlags []cli.Flag = []cli.Flag{
	flags.RelayAddrFlag,
	&cli.StringFlag{
		Name:  "key",
		Usage: "hex-encoded secp256k1 attestor private key",
	},
	&cli.StringFlag{
		Name:  "key-file",
		Usage: "path to a sealed attestor key file, see 'seal-key'",
	},
	&cli.StringFlag{
		Name:    "key-passphrase",
		Usage:   "passphrase for the sealed key file",
		EnvVars: []string{"ATTESTOR_KEY_PASSPHRASE"},
	},
	&cli.DurationFlag{
		Name:  "poll-interval",
		Value: attestor.DefaultPollInterval,
		Usage: "how often to poll the relay for pending messages",
	},
	flags.LogServiceFlagFn("attestor"),
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
}

func main() {
	app := &cli.App{
		Name:   "attestor",
		Usage:  "Run the endorsement daemon for a relay attestor",
		Flags:  attestorFlags,
		Action: runAttestor,
		Commands: []*cli.Command{
			{
				Name:  "seal-key",
				Usage: "Seal a hex private key into a passphrase-protected key file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Required: true, Usage: "hex-encoded secp256k1 private key"},
					&cli.StringFlag{Name: "out", Required: true, Usage: "output key file path"},
					&cli.StringFlag{
						Name:     "key-passphrase",
						Required: true,
						Usage:    "passphrase to seal the key under",
						EnvVars:  []string{"ATTESTOR_KEY_PASSPHRASE"},
					},
				},
				Action: sealKey,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadKey(cCtx *cli.Context) (*ecdsa.PrivateKey, error) {
	if keyHex := cCtx.String("key"); keyHex != "" {
		return crypto.HexToECDSA(keyHex)
	}

	keyFile := cCtx.String("key-file")
	if keyFile == "" {
		return nil, errors.New("either key or key-file is required")
	}

	passphrase := cCtx.String("key-passphrase")
	if passphrase == "" {
		return nil, errors.New("key-passphrase is required for a sealed key file")
	}

	sealed, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read key file: %w", err)
	}

	keyBytes, err := cryptoutils.OpenWithPassphrase([]byte(passphrase), sealed)
	if err != nil {
		return nil, fmt.Errorf("could not unseal key file: %w", err)
	}

	return crypto.ToECDSA(keyBytes)
}

func runAttestor(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	key, err := loadKey(cCtx)
	if err != nil {
		logger.Error("Failed to load attestor key", "err", err)
		return err
	}

	client := clients.NewRelayClient(cCtx.String(flags.RelayAddrFlag.Name))
	runner := attestor.NewRunner(client, key, cCtx.Duration("poll-interval"), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func sealKey(cCtx *cli.Context) error {
	key, err := crypto.HexToECDSA(cCtx.String("key"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	sealed, err := cryptoutils.SealWithPassphrase([]byte(cCtx.String("key-passphrase")), crypto.FromECDSA(key))
	if err != nil {
		return fmt.Errorf("could not seal key: %w", err)
	}

	if err := os.WriteFile(cCtx.String("out"), sealed, 0o600); err != nil {
		return fmt.Errorf("could not write key file: %w", err)
	}

	fmt.Printf("sealed key written to %s (address %s)\n",
		cCtx.String("out"), hex.EncodeToString(crypto.PubkeyToAddress(key.PublicKey).Bytes()))
	return nil
}
