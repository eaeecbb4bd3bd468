package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/fountain"
	"github.com/novasamatech/nova-spektr-sub014/transport"
)

// Environment variable names for the airgap CLI
const (
	EnvConfigFile = "AIRGAP_CONFIG"
	EnvChain      = "AIRGAP_CHAIN"
	EnvRPCURL     = "AIRGAP_RPC_URL"
	EnvKnown      = "AIRGAP_KNOWN_ACCOUNTS"
	EnvMetrics    = "AIRGAP_METRICS_ADDR"
	EnvDebug      = "AIRGAP_DEBUG"
)

type ChainConfig struct {
	Name        string `yaml:"name"`
	GenesisHash string `yaml:"genesis_hash"`
	SS58Prefix  uint8  `yaml:"ss58_prefix"`
	RPCURL      string `yaml:"rpc_url"`
	// ExpectedBlockTime of zero means estimate it from recent blocks.
	ExpectedBlockTime time.Duration `yaml:"expected_block_time"`
	// ProxyTypes maps proxy type names to their enum index on this chain.
	ProxyTypes map[string]uint8 `yaml:"proxy_types"`
}

type TransportConfig struct {
	Scheme          string        `yaml:"scheme"`
	SymbolSize      int           `yaml:"symbol_size"`
	FrameCapacity   int           `yaml:"frame_capacity"`
	Overhead        float64       `yaml:"overhead"`
	FrameInterval   time.Duration `yaml:"frame_interval"`
	ToleranceBlocks int           `yaml:"tolerance_blocks"`
	EraPeriod       uint64        `yaml:"era_period"`
	IngestRate      float64       `yaml:"ingest_rate"`
	IngestBurst     int           `yaml:"ingest_burst"`
}

type Config struct {
	Chains    []ChainConfig   `yaml:"chains"`
	Transport TransportConfig `yaml:"transport"`
	Debug     bool            `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Chains: []ChainConfig{
			{
				Name:              "polkadot",
				GenesisHash:       "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
				SS58Prefix:        0,
				RPCURL:            "wss://rpc.polkadot.io",
				ExpectedBlockTime: 6 * time.Second,
				ProxyTypes:        map[string]uint8{"Any": 0, "NonTransfer": 1, "Governance": 2, "Staking": 3},
			},
			{
				Name:              "kusama",
				GenesisHash:       "0xb0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe",
				SS58Prefix:        2,
				RPCURL:            "wss://kusama-rpc.polkadot.io",
				ExpectedBlockTime: 6 * time.Second,
				ProxyTypes:        map[string]uint8{"Any": 0, "NonTransfer": 1, "Governance": 2, "Staking": 3},
			},
		},
		Transport: TransportConfig{
			Scheme:          "rlf",
			SymbolSize:      fountain.DefaultSymbolSize,
			FrameCapacity:   fountain.HeaderSize + fountain.DefaultSymbolSize,
			Overhead:        fountain.DefaultOverhead,
			FrameInterval:   200 * time.Millisecond,
			ToleranceBlocks: 32,
			EraPeriod:       64,
			IngestRate:      30,
			IngestBurst:     10,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	seen := map[string]bool{}
	for i := range c.Chains {
		if err := c.Chains[i].Validate(); err != nil {
			return errors.Wrapf(err, "chain %d", i)
		}
		name := strings.ToLower(c.Chains[i].Name)
		if seen[name] {
			return fmt.Errorf("duplicate chain %s", c.Chains[i].Name)
		}
		seen[name] = true
	}
	return c.Transport.Validate()
}

// Chain finds a chain by name, case-insensitively.
func (c *Config) Chain(name string) (*ChainConfig, error) {
	for i := range c.Chains {
		if strings.EqualFold(c.Chains[i].Name, name) {
			return &c.Chains[i], nil
		}
	}
	return nil, fmt.Errorf("unknown chain %s", name)
}

func (c *ChainConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("chain name cannot be empty")
	}
	if _, err := c.Genesis(); err != nil {
		return err
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url of %s cannot be empty", c.Name)
	}
	if !strings.HasPrefix(c.RPCURL, "ws://") && !strings.HasPrefix(c.RPCURL, "wss://") {
		return fmt.Errorf("rpc url of %s must be a websocket url, got %s", c.Name, c.RPCURL)
	}
	if c.ExpectedBlockTime < 0 {
		return fmt.Errorf("expected block time of %s cannot be negative", c.Name)
	}
	return nil
}

func (c *ChainConfig) Genesis() (types.Hash, error) {
	b, err := types.HexDecodeString(c.GenesisHash)
	if err != nil {
		return types.Hash{}, errors.Wrapf(err, "invalid genesis hash of %s", c.Name)
	}
	if len(b) != 32 {
		return types.Hash{}, fmt.Errorf("genesis hash of %s must be 32 bytes, got %d", c.Name, len(b))
	}
	return types.NewHash(b), nil
}

// ProxyType resolves a proxy type name, e.g. "Any".
func (c *ChainConfig) ProxyType(name string) (builder.ProxyType, error) {
	idx, ok := c.ProxyTypes[name]
	if !ok {
		return 0, fmt.Errorf("unknown proxy type %s on %s", name, c.Name)
	}
	return builder.ProxyType(idx), nil
}

func (t *TransportConfig) Validate() error {
	if _, err := t.scheme(); err != nil {
		return err
	}
	if err := t.CodecOptions().Validate(); err != nil {
		return err
	}
	if t.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive, got %s", t.FrameInterval)
	}
	if t.ToleranceBlocks < 1 {
		return fmt.Errorf("tolerance blocks must be at least 1, got %d", t.ToleranceBlocks)
	}
	if t.EraPeriod < 4 || t.EraPeriod > 1<<16 {
		return fmt.Errorf("era period must be between 4-65536, got %d", t.EraPeriod)
	}
	if t.EraPeriod < uint64(t.ToleranceBlocks) {
		return fmt.Errorf("era period %d is shorter than the %d block display window", t.EraPeriod, t.ToleranceBlocks)
	}
	if t.IngestRate < 0 {
		return fmt.Errorf("ingest rate cannot be negative")
	}
	return nil
}

func (t *TransportConfig) scheme() (fountain.SchemeID, error) {
	switch strings.ToLower(t.Scheme) {
	case "", "rlf":
		return fountain.SchemeRLF, nil
	case "reed-solomon", "rs":
		return fountain.SchemeReedSolomon, nil
	default:
		return 0, fmt.Errorf("unknown transport scheme %s", t.Scheme)
	}
}

func (t *TransportConfig) CodecOptions() fountain.Options {
	scheme, _ := t.scheme()
	return fountain.Options{
		Scheme:        scheme,
		SymbolSize:    t.SymbolSize,
		FrameCapacity: t.FrameCapacity,
		Overhead:      t.Overhead,
	}
}

func (t *TransportConfig) SessionConfig() transport.Config {
	return transport.Config{
		Codec:         t.CodecOptions(),
		FrameInterval: t.FrameInterval,
		IngestRate:    rate.Limit(t.IngestRate),
		IngestBurst:   t.IngestBurst,
	}
}

func (t *TransportConfig) Freshness(blockTime time.Duration) transport.Freshness {
	return transport.Freshness{ExpectedBlockTime: blockTime, ToleranceBlocks: t.ToleranceBlocks}
}
