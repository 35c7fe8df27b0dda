package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults for the reference deployment. The two-minute epoch matches the
// demo cadence; production deployments are expected to override it.
const (
	DefaultTicketPrice   uint64 = 10_000_000
	DefaultEpochSeconds  uint64 = 120
	DefaultReserveFloor  uint64 = 2_000_000
	defaultRPCAddress           = ":8661"
	defaultDataDir              = "./rafa-data"
	defaultNetworkName          = "rafa-local"
)

type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	NetworkName  string `toml:"NetworkName"`
	TicketPrice  uint64 `toml:"TicketPrice"`
	EpochSeconds uint64 `toml:"EpochSeconds"`
	ReserveFloor uint64 `toml:"ReserveFloor"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}
	if err := rejectExplicitInvalid(path, meta, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot operate with.
func (c *Config) Validate() error {
	if c.TicketPrice == 0 {
		return fmt.Errorf("config: TicketPrice must be positive")
	}
	if c.EpochSeconds == 0 {
		return fmt.Errorf("config: EpochSeconds must be positive")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	return nil
}

// rejectExplicitInvalid fails on values the file sets to something the
// engine cannot run with. Defaulting only ever fills keys the file omits;
// an explicit zero is an operator error, not a request for the default.
func rejectExplicitInvalid(path string, meta toml.MetaData, cfg *Config) error {
	if meta.IsDefined("TicketPrice") && cfg.TicketPrice == 0 {
		return fmt.Errorf("config file %s: TicketPrice must be positive", path)
	}
	if meta.IsDefined("EpochSeconds") && cfg.EpochSeconds == 0 {
		return fmt.Errorf("config file %s: EpochSeconds must be positive", path)
	}
	if meta.IsDefined("DataDir") && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config file %s: DataDir must not be empty", path)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaultNetworkName
	}
	if cfg.TicketPrice == 0 {
		cfg.TicketPrice = DefaultTicketPrice
	}
	if cfg.EpochSeconds == 0 {
		cfg.EpochSeconds = DefaultEpochSeconds
	}
	if cfg.ReserveFloor == 0 {
		cfg.ReserveFloor = DefaultReserveFloor
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:   defaultRPCAddress,
		DataDir:      defaultDataDir,
		NetworkName:  defaultNetworkName,
		TicketPrice:  DefaultTicketPrice,
		EpochSeconds: DefaultEpochSeconds,
		ReserveFloor: DefaultReserveFloor,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
