package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/message-relay-backend/cmd/flags"
	"github.com/ruteri/message-relay-backend/destination"
	"github.com/ruteri/message-relay-backend/httpserver"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/quorum"
	"github.com/ruteri/message-relay-backend/relay"
	"github.com/ruteri/message-relay-backend/storage"
)

var serverFlags []cli.Flag = append([]cli.Flag{
	flags.ListenAddrFlag,
	&cli.StringFlag{
		Name:  "owner",
		Usage: "relay owner account address for admin authorization. 40-char hex string; admin API is disabled when empty",
	},
	&cli.StringSliceFlag{
		Name:  "attestor",
		Usage: "initial attestor account address, 40-char hex string (repeatable)",
	},
	&cli.StringSliceFlag{
		Name:  "destination",
		Usage: "static destination handler as chain=endpoint, e.g. chain-b=http://127.0.0.1:9000/ (repeatable)",
	},
	&cli.StringSliceFlag{
		Name:  "destination-domain",
		Usage: "DNS-discovered destination handler as chain=domain; the endpoint is resolved from the domain's SRV record (repeatable)",
	},
	&cli.StringSliceFlag{
		Name:  "archive",
		Usage: "archive backend location URI: file://, s3://, ipfs://, vault:// (repeatable)",
	},
	&cli.StringFlag{
		Name:  "dns-resolver",
		Usage: "DNS server address for destination discovery, defaults to the local stub resolver",
	},
	flags.LogServiceFlagFn("relay-server"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "relay-server",
		Usage:  "Serve the cross-chain message relay API",
		Flags:  serverFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	attestors := make([]interfaces.AccountAddress, 0)
	for _, attestorHex := range cCtx.StringSlice("attestor") {
		attestor, err := interfaces.NewAccountAddressFromHex(attestorHex)
		if err != nil {
			logger.Error("Invalid attestor address", "err", err, "address", attestorHex)
			return err
		}
		attestors = append(attestors, attestor)
	}

	events := relay.NewLogEmitter(logger)
	signerQuorum := quorum.New(attestors, logger, events)

	registry, err := relay.New(signerQuorum, logger, events)
	if err != nil {
		logger.Error("Failed to create registry", "err", err)
		return err
	}

	if archiveURIs := cCtx.StringSlice("archive"); len(archiveURIs) > 0 {
		locations := make([]interfaces.StorageBackendLocation, len(archiveURIs))
		for i, uri := range archiveURIs {
			locations[i] = interfaces.StorageBackendLocation(uri)
		}

		archive, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
		if err != nil {
			logger.Error("Failed to create archive backends", "err", err)
			return err
		}
		registry = registry.WithArchive(archive)
		logger.Info("Execution archive enabled", "backends", len(locations))
	}

	resolver := destination.NewResolver(cCtx.String("dns-resolver"), logger)

	for _, pair := range cCtx.StringSlice("destination") {
		chainKey, endpoint, err := splitPair(pair)
		if err != nil {
			logger.Error("Invalid destination flag", "err", err, "value", pair)
			return err
		}

		dest, err := destination.NewHTTPDestination(endpoint, logger)
		if err != nil {
			logger.Error("Invalid destination endpoint", "err", err, "endpoint", endpoint)
			return err
		}
		if err := registry.RegisterDestination(chainKey, dest); err != nil {
			logger.Error("Failed to register destination", "err", err, "chainKey", chainKey.String())
			return err
		}
		logger.Info("Destination registered", "chainKey", chainKey.String(), "endpoint", endpoint)
	}

	for _, pair := range cCtx.StringSlice("destination-domain") {
		chainKey, domain, err := splitPair(pair)
		if err != nil {
			logger.Error("Invalid destination-domain flag", "err", err, "value", pair)
			return err
		}

		dest, err := resolver.ResolveDestination(domain)
		if err != nil {
			logger.Error("Destination discovery failed", "err", err, "domain", domain)
			return err
		}
		if err := registry.RegisterDestination(chainKey, dest); err != nil {
			logger.Error("Failed to register destination", "err", err, "chainKey", chainKey.String())
			return err
		}
		logger.Info("Destination registered", "chainKey", chainKey.String(), "endpoint", dest.Endpoint())
	}

	handler := httpserver.NewHandler(registry, signerQuorum, logger)

	var adminHandler *httpserver.AdminHandler
	if ownerHex := cCtx.String("owner"); ownerHex != "" {
		owner, err := interfaces.NewAccountAddressFromHex(ownerHex)
		if err != nil {
			logger.Error("Invalid owner address", "err", err, "address", ownerHex)
			return err
		}
		adminHandler = httpserver.NewAdminHandler(owner, handler, registry, resolver, logger)
		logger.Info("Admin API enabled", "owner", owner.String())
	} else {
		logger.Warn("No owner configured, admin API disabled")
	}

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
	srv, err := httpserver.New(cfg, handler, adminHandler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	srv.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}

func splitPair(pair string) (interfaces.ChainKey, string, error) {
	key, value, found := strings.Cut(pair, "=")
	if !found || value == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", pair)
	}

	chainKey, err := interfaces.NewChainKey(key)
	if err != nil {
		return "", "", err
	}
	return chainKey, value, nil
}
