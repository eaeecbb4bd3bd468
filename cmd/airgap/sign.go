package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/config"
	"github.com/novasamatech/nova-spektr-sub014/envelope"
	"github.com/novasamatech/nova-spektr-sub014/handlers"
	"github.com/novasamatech/nova-spektr-sub014/models"
	"github.com/novasamatech/nova-spektr-sub014/transport"
)

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Build transactions, display them as QR frames and submit what comes back signed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "origin",
				Usage:    "Account the innermost calls are dispatched from (SS58 or 0x account id)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "call",
				Usage:    "Hex encoded call, repeat for a batch",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "call-name",
				Usage: "Pallet.method description of the calls",
				Value: "Custom.call",
			},
			&cli.StringSliceFlag{
				Name:    "known",
				Usage:   "Accounts this wallet controls, in preference order",
				EnvVars: []string{config.EnvKnown},
			},
			&cli.StringSliceFlag{
				Name:  "layer",
				Usage: "Authorization layers from the innermost outwards: multisig, proxy",
			},
			&cli.UintFlag{
				Name:  "multisig-threshold",
				Usage: "Approvals the multisig needs",
			},
			&cli.StringSliceFlag{
				Name:  "multisig-signatory",
				Usage: "Multisig signatories, repeat or comma separate",
			},
			&cli.StringFlag{
				Name:  "multisig-timepoint",
				Usage: "Timepoint of the first approval as height:index, empty when opening the operation",
			},
			&cli.StringFlag{
				Name:  "proxy-delegate",
				Usage: "Delegate that signs on behalf of the proxied account",
			},
			&cli.StringFlag{
				Name:  "proxy-type",
				Usage: "Proxy type name from the chain configuration",
				Value: "Any",
			},
			&cli.UintFlag{
				Name:  "proxy-delay",
				Usage: "Announcement delay of a time-locked proxy, in blocks",
			},
			&cli.StringFlag{
				Name:  "descriptors",
				Usage: "Write the unsigned transaction descriptors (CBOR) to this file",
			},
			&cli.BoolFlag{
				Name:  "no-submit",
				Usage: "Print the signed extrinsics instead of submitting them",
			},
			&cli.BoolFlag{
				Name:  "wait-finalized",
				Usage: "Wait for finality instead of block inclusion",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address, e.g. :9102",
				EnvVars: []string{config.EnvMetrics},
			},
		},
		Action: runSign,
	}
}

func runSign(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := handlers.NewChain(models.Client{Addr: e.chain.RPCURL, SS58Prefix: e.chain.SS58Prefix}, e.logger)
	if err != nil {
		return err
	}
	chain.WaitFinalized = c.Bool("wait-finalized")

	known, err := parseAccounts(c.StringSlice("known"))
	if err != nil {
		return err
	}
	origin, err := parseAccount(c.String("origin"))
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	layers, err := parseLayers(c, e.chain)
	if err != nil {
		return err
	}

	composer := builder.NewComposer(chain.Metadata(), chain, known, e.logger)
	genesis, err := e.chain.Genesis()
	if err != nil {
		return err
	}

	requests, err := buildRequests(ctx, c, e, composer, chain, origin, layers, genesis)
	if err != nil {
		return err
	}
	if path := c.String("descriptors"); path != "" {
		if err := writeDescriptors(path, requests); err != nil {
			return err
		}
	}

	blockTime := e.chain.ExpectedBlockTime
	if blockTime == 0 {
		if blockTime, err = chain.EstimateBlockTime(ctx, 10); err != nil {
			return fmt.Errorf("failed to estimate block time: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := transport.NewMetrics(reg)
	if addr := c.String("metrics-addr"); addr != "" {
		serveMetrics(addr, reg, e)
	}

	sink := transport.FrameSinkFunc(func(frame []byte) error {
		_, err := fmt.Fprintf(os.Stdout, "frame %x\n", frame)
		return err
	})
	session := transport.NewSession(e.cfg.Transport.SessionConfig(), sink,
		transport.WithLogger(e.logger),
		transport.WithMetrics(metrics),
	)
	if err := session.Start(ctx, requests, e.cfg.Transport.Freshness(blockTime)); err != nil {
		return err
	}
	e.logger.Sugar().Infow("Waiting for signatures", "session", session.ID().String(), "validFor", session.Remaining())

	go func() {
		err := readFrames(os.Stdin, func(frame []byte) bool {
			progress, err := session.Ingest(frame)
			if err != nil {
				e.logger.Sugar().Debugw("Scanned frame not accepted", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "received %d/%d symbols\n", progress.Rank, progress.Required)
			}
			return session.State().Terminal()
		})
		if err != nil {
			e.logger.Sugar().Warnw("Stopped reading frames", "error", err)
		}
	}()

	signed, err := session.Wait(ctx)
	if err != nil {
		return err
	}

	if c.Bool("no-submit") {
		for _, s := range signed {
			hex, err := s.Extrinsic.Hex()
			if err != nil {
				return err
			}
			fmt.Println(hex)
		}
		return nil
	}

	results := transport.SubmitAll(ctx, chain, signed, e.logger, metrics)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%d\t%s\tfailed: %v\n", r.Signed.Index, r.Hash.Hex(), r.Err)
			continue
		}
		fmt.Printf("%d\t%s\tblock %d #%d\n", r.Signed.Index, r.Hash.Hex(), r.Inclusion.BlockNumber, r.Inclusion.Index)
	}
	if failed := results.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d submissions failed", len(failed), len(results))
	}
	return nil
}

func parseLayers(c *cli.Context, chain *config.ChainConfig) ([]builder.Layer, error) {
	var layers []builder.Layer
	for _, name := range c.StringSlice("layer") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "multisig":
			signatories, err := parseAccounts(c.StringSlice("multisig-signatory"))
			if err != nil {
				return nil, err
			}
			layer := builder.MultisigLayer{
				Threshold:   uint16(c.Uint("multisig-threshold")),
				Signatories: signatories,
			}
			if tp := c.String("multisig-timepoint"); tp != "" {
				var t builder.Timepoint
				if _, err := fmt.Sscanf(tp, "%d:%d", &t.Height, &t.Index); err != nil {
					return nil, fmt.Errorf("invalid multisig timepoint %s: %w", tp, err)
				}
				layer.Timepoint = &t
			}
			layers = append(layers, layer)
		case "proxy":
			delegate, err := parseAccount(c.String("proxy-delegate"))
			if err != nil {
				return nil, fmt.Errorf("invalid proxy delegate: %w", err)
			}
			proxyType, err := chain.ProxyType(c.String("proxy-type"))
			if err != nil {
				return nil, err
			}
			layers = append(layers, builder.ProxyLayer{
				Delegate:  delegate,
				ProxyType: proxyType,
				Delay:     uint32(c.Uint("proxy-delay")),
			})
		default:
			return nil, fmt.Errorf("unknown layer %s", name)
		}
	}
	return layers, nil
}

// buildRequests builds one request per call. Nonces of a signer that appears more
// than once follow each other.
func buildRequests(ctx context.Context, c *cli.Context, e *env, composer *builder.Composer, chain *handlers.Chain,
	origin types.AccountID, layers []builder.Layer, genesis types.Hash) ([]transport.Request, error) {
	infos := map[types.AccountID]builder.SigningInfo{}
	var requests []transport.Request

	for i, raw := range c.StringSlice("call") {
		b, err := types.HexDecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("call %d is not hex: %w", i, err)
		}
		call, err := builder.DecodeCall(b, c.String("call-name"))
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		b2, err := composer.Chain(origin, call, layers...)
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}

		signer := b2.Signer()
		info, ok := infos[signer]
		if ok {
			info.Nonce++
		} else if info, err = chain.SigningInfo(ctx, signer, e.cfg.Transport.EraPeriod); err != nil {
			return nil, err
		}
		infos[signer] = info

		payload, err := b2.SigningPayload(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		e.logger.Sugar().Infow("Built transaction",
			"index", i,
			"path", strings.Join(payload.Transaction.Path, " > "),
			"signer", models.SS58Addr(signer, e.chain.SS58Prefix),
			"nonce", info.Nonce,
		)
		requests = append(requests, transport.Request{
			Header: envelope.Header{
				Command:     envelope.CommandSignTransaction,
				GenesisHash: genesis,
				Address:     signer,
			},
			Payload: payload,
		})
	}
	return requests, nil
}

func writeDescriptors(path string, requests []transport.Request) error {
	txs := make([]builder.UnsignedTransaction, len(requests))
	for i, r := range requests {
		txs[i] = r.Payload.Transaction
	}
	b, err := builder.MarshalDescriptors(txs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func serveMetrics(addr string, reg *prometheus.Registry, e *env) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Sugar().Warnw("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
