package main

import (
	"fmt"
	"os"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/envelope"
	"github.com/novasamatech/nova-spektr-sub014/fountain"
)

// scanPayload decodes hex frames from stdin until one payload is complete.
func scanPayload(overhead float64) ([]byte, error) {
	dec := fountain.NewDecoder(overhead)
	var payload []byte
	var absorbErr error
	err := readFrames(os.Stdin, func(frame []byte) bool {
		state, err := dec.Absorb(frame)
		if err != nil {
			if errors.Is(err, fountain.ErrCorrupt) {
				absorbErr = err
				return true
			}
			fmt.Fprintf(os.Stderr, "skipping frame: %v\n", err)
			return false
		}
		if state.Status == fountain.StatusComplete {
			payload = state.Payload
			return true
		}
		fmt.Fprintf(os.Stderr, "received %d/%d symbols\n", state.Rank, state.Required)
		return false
	})
	if err != nil {
		return nil, err
	}
	if absorbErr != nil {
		return nil, absorbErr
	}
	if payload == nil {
		return nil, errors.Wrap(fountain.ErrInvalidFrame, "input ended before the payload was complete")
	}
	return payload, nil
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode scanned frames from stdin and print the envelope they carry",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			payload, err := scanPayload(e.cfg.Transport.Overhead)
			if err != nil {
				return err
			}

			if entries, err := envelope.Unpack(payload); err == nil {
				for i, entry := range entries {
					fmt.Printf("%d\t%s\tgenesis %s\t%d bytes\t%s\n", i, entry.Header.Command,
						entry.Header.GenesisHash.Hex(), len(entry.Payload), types.HexEncodeToString(entry.Payload))
				}
				return nil
			}
			sigs, err := envelope.UnpackSignatures(payload)
			if err != nil {
				return err
			}
			for i, sig := range sigs {
				b, err := types.EncodeToHexString(sig)
				if err != nil {
					return err
				}
				fmt.Printf("%d\t%s\n", i, b)
			}
			return nil
		},
	}
}

func assembleCommand() *cli.Command {
	return &cli.Command{
		Name:  "assemble",
		Usage: "Attach scanned signatures (stdin) to saved descriptors and print the signed extrinsics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "descriptors",
				Usage:    "CBOR descriptors written by sign --descriptors",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			b, err := os.ReadFile(c.String("descriptors"))
			if err != nil {
				return err
			}
			txs, err := builder.UnmarshalDescriptors(b)
			if err != nil {
				return err
			}
			payload, err := scanPayload(e.cfg.Transport.Overhead)
			if err != nil {
				return err
			}
			sigs, err := envelope.UnpackSignatures(payload)
			if err != nil {
				return err
			}
			if len(sigs) != len(txs) {
				return errors.Wrapf(envelope.ErrMalformedEnvelope, "%d signatures for %d transactions", len(sigs), len(txs))
			}
			for i, tx := range txs {
				ext, err := tx.Assemble(sigs[i])
				if err != nil {
					return err
				}
				hex, err := ext.Hex()
				if err != nil {
					return err
				}
				fmt.Println(hex)
			}
			return nil
		},
	}
}
