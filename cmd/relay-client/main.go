package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/message-relay-backend/api/clients"
	"github.com/ruteri/message-relay-backend/cmd/flags"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/keymanager"
)

func main() {
	app := &cli.App{
		Name:  "relay-client",
		Usage: "Interact with the message relay API",
		Flags: []cli.Flag{
			flags.RelayAddrFlag,
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogUidFlag,
			flags.LogServiceFlagFn("relay-client"),
		},
		Commands: []*cli.Command{
			{
				Name:  "propose",
				Usage: "Build a proposal envelope for the current nonce and submit it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "destination-chain", Required: true, Usage: "routing key of the destination chain"},
					&cli.StringFlag{Name: "receiver", Required: true, Usage: "receiver identifier on the destination chain"},
					&cli.StringFlag{Name: "payload", Required: true, Usage: "hex-encoded inner payload"},
					&cli.StringFlag{Name: "sender", Required: true, Usage: "sender account address, 40-char hex"},
					&cli.StringSliceFlag{Name: "attribute", Usage: "message attribute as key=value (repeatable)"},
				},
				Action: runPropose,
			},
			{
				Name:  "attest",
				Usage: "Sign a message ID with an attestor key and submit the endorsement",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message-id", Required: true, Usage: "64-char hex message ID"},
					&cli.StringFlag{Name: "key", Required: true, Usage: "hex-encoded attestor private key"},
				},
				Action: runAttest,
			},
			{
				Name:  "execute",
				Usage: "Trigger delivery of a message that has reached quorum",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message-id", Required: true, Usage: "64-char hex message ID"},
				},
				Action: runExecute,
			},
			{
				Name:  "get",
				Usage: "Fetch the stored view of a message",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message-id", Required: true, Usage: "64-char hex message ID"},
				},
				Action: runGet,
			},
			{
				Name:   "nonce",
				Usage:  "Fetch the next expected proposal nonce",
				Action: runNonce,
			},
			{
				Name:   "pending",
				Usage:  "List message IDs awaiting execution",
				Action: runPending,
			},
			{
				Name:  "admin",
				Usage: "Owner-restricted configuration commands",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner-key", Required: true, Usage: "hex-encoded owner private key for admin authorization"},
				},
				Subcommands: []*cli.Command{
					{
						Name:  "destination",
						Usage: "Register a destination handler for a routing key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "chain-key", Required: true},
							&cli.StringFlag{Name: "endpoint", Usage: "handler endpoint URL"},
							&cli.StringFlag{Name: "domain", Usage: "handler domain to discover via DNS SRV"},
						},
						Action: runAdminDestination,
					},
					{
						Name:  "attestor",
						Usage: "Add an attestor to the quorum",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "attestor", Required: true, Usage: "attestor account address, 40-char hex"},
						},
						Action: runAdminAttestor,
					},
					{
						Name:  "quorum",
						Usage: "Replace the attestation quorum",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "attestor", Required: true, Usage: "attestor account address, 40-char hex (repeatable)"},
						},
						Action: runAdminQuorum,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.RelayClient {
	return clients.NewRelayClient(cCtx.String(flags.RelayAddrFlag.Name))
}

func runPropose(cCtx *cli.Context) error {
	client := newClient(cCtx)

	chainKey, err := interfaces.NewChainKey(cCtx.String("destination-chain"))
	if err != nil {
		return err
	}

	sender, err := interfaces.NewAccountAddressFromHex(cCtx.String("sender"))
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	inner, err := hex.DecodeString(strings.TrimPrefix(cCtx.String("payload"), "0x"))
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	attributes := make([][]byte, 0)
	for _, pair := range cCtx.StringSlice("attribute") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		attribute, err := interfaces.EncodeAttribute(key, []byte(value))
		if err != nil {
			return err
		}
		attributes = append(attributes, attribute)
	}

	nonce, err := client.Nonce(cCtx.Context)
	if err != nil {
		return err
	}

	payload, err := interfaces.EncodeProposalEnvelope(interfaces.ProposalEnvelope{
		Nonce:  nonce,
		Sender: sender,
		Inner:  inner,
	})
	if err != nil {
		return err
	}

	messageID, err := client.Propose(cCtx.Context, chainKey, cCtx.String("receiver"), payload, attributes)
	if err != nil {
		return err
	}

	fmt.Printf("proposed message %s at nonce %d\n", messageID.String(), nonce)
	return nil
}

func runAttest(cCtx *cli.Context) error {
	client := newClient(cCtx)

	messageID, err := interfaces.NewMessageIDFromHex(cCtx.String("message-id"))
	if err != nil {
		return err
	}

	key, err := crypto.HexToECDSA(cCtx.String("key"))
	if err != nil {
		return fmt.Errorf("invalid attestor key: %w", err)
	}

	signature, err := keymanager.SignMessageID(key, messageID)
	if err != nil {
		return err
	}

	voteCount, err := client.Attest(cCtx.Context, messageID, keymanager.SignerAddress(key), signature)
	if err != nil {
		return err
	}

	fmt.Printf("attested message %s, vote count %d\n", messageID.String(), voteCount)
	return nil
}

func runExecute(cCtx *cli.Context) error {
	messageID, err := interfaces.NewMessageIDFromHex(cCtx.String("message-id"))
	if err != nil {
		return err
	}

	if err := newClient(cCtx).Execute(cCtx.Context, messageID); err != nil {
		return err
	}

	fmt.Printf("executed message %s\n", messageID.String())
	return nil
}

func runGet(cCtx *cli.Context) error {
	messageID, err := interfaces.NewMessageIDFromHex(cCtx.String("message-id"))
	if err != nil {
		return err
	}

	msg, err := newClient(cCtx).GetMessage(cCtx.Context, messageID)
	if err != nil {
		return err
	}

	fmt.Printf("message %s\n", msg.MessageID)
	fmt.Printf("  destination chain: %s\n", msg.DestinationChain)
	fmt.Printf("  receiver:          %s\n", msg.Receiver)
	fmt.Printf("  nonce:             %d\n", msg.Nonce)
	fmt.Printf("  sender:            %s\n", msg.Sender)
	fmt.Printf("  threshold:         %d\n", msg.Threshold)
	fmt.Printf("  votes:             %d\n", msg.VoteCount)
	fmt.Printf("  state:             %s\n", msg.State)
	fmt.Printf("  created at:        %s\n", msg.CreatedAt)
	return nil
}

func runNonce(cCtx *cli.Context) error {
	nonce, err := newClient(cCtx).Nonce(cCtx.Context)
	if err != nil {
		return err
	}

	fmt.Printf("next nonce: %d\n", nonce)
	return nil
}

func runPending(cCtx *cli.Context) error {
	pending, err := newClient(cCtx).PendingMessages(cCtx.Context)
	if err != nil {
		return err
	}

	for _, messageID := range pending {
		fmt.Println(messageID.String())
	}
	return nil
}

func adminClient(cCtx *cli.Context) (*clients.RelayClient, error) {
	key, err := crypto.HexToECDSA(cCtx.String("owner-key"))
	if err != nil {
		return nil, fmt.Errorf("invalid owner key: %w", err)
	}
	return newClient(cCtx).WithAdminKey(key), nil
}

func runAdminDestination(cCtx *cli.Context) error {
	client, err := adminClient(cCtx)
	if err != nil {
		return err
	}

	chainKey, err := interfaces.NewChainKey(cCtx.String("chain-key"))
	if err != nil {
		return err
	}

	if err := client.RegisterDestination(cCtx.Context, chainKey, cCtx.String("endpoint"), cCtx.String("domain")); err != nil {
		return err
	}

	fmt.Printf("destination registered for %s\n", chainKey.String())
	return nil
}

func runAdminAttestor(cCtx *cli.Context) error {
	client, err := adminClient(cCtx)
	if err != nil {
		return err
	}

	attestor, err := interfaces.NewAccountAddressFromHex(cCtx.String("attestor"))
	if err != nil {
		return err
	}

	if err := client.AddAttestor(cCtx.Context, attestor); err != nil {
		return err
	}

	fmt.Printf("attestor %s added\n", attestor.String())
	return nil
}

func runAdminQuorum(cCtx *cli.Context) error {
	client, err := adminClient(cCtx)
	if err != nil {
		return err
	}

	attestors := make([]interfaces.AccountAddress, 0)
	for _, attestorHex := range cCtx.StringSlice("attestor") {
		attestor, err := interfaces.NewAccountAddressFromHex(attestorHex)
		if err != nil {
			return err
		}
		attestors = append(attestors, attestor)
	}

	if err := client.SetQuorum(cCtx.Context, attestors); err != nil {
		return err
	}

	fmt.Printf("quorum replaced with %d attestors\n", len(attestors))
	return nil
}
