// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// MantleSepolia is the chain the factory is deployed on by default.
const MantleSepolia = 5003

type Config struct {
	RPCURL         string
	ChainID        *big.Int
	FactoryAddress common.Address

	// Exactly one of PrivateKey and ClefURL selects how transactions are signed.
	PrivateKey  string
	ClefURL     string
	FromAddress common.Address
	GasPrice    *big.Int
	GasLimit    uint64

	DatabaseURL  string
	RedisURL     string
	AMQPURL      string
	AMQPExchange string

	RevenueBaseline   float64
	IdempotencyWindow time.Duration

	LogLevel string
	HTTPAddr string
}

// Load reads .env if present, then the process environment. Unset values
// fall back to defaults; malformed ones are errors.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []string
	getInt := func(key string, def uint64) uint64 {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s=%q", key, val))
		}
		return n
	}
	getFloat := func(key string, def float64) float64 {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			errs = append(errs, fmt.Sprintf("invalid %s=%q", key, val))
		}
		return f
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s=%q", key, val))
		}
		return d
	}
	getAddress := func(key string) common.Address {
		val := os.Getenv(key)
		if val == "" {
			return common.Address{}
		}
		if !common.IsHexAddress(val) {
			errs = append(errs, fmt.Sprintf("invalid %s=%q", key, val))
		}
		return common.HexToAddress(val)
	}
	getBig := func(key string) *big.Int {
		val := os.Getenv(key)
		if val == "" {
			return nil
		}
		n, ok := new(big.Int).SetString(val, 10)
		if !ok || n.Sign() < 0 {
			errs = append(errs, fmt.Sprintf("invalid %s=%q", key, val))
		}
		return n
	}

	cfg := Config{
		RPCURL:            os.Getenv("RPC_URL"),
		ChainID:           new(big.Int).SetUint64(getInt("CHAIN_ID", MantleSepolia)),
		FactoryAddress:    getAddress("MANTEIA_FACTORY_ADDRESS"),
		PrivateKey:        strings.TrimPrefix(os.Getenv("PRIVATE_KEY"), "0x"),
		ClefURL:           os.Getenv("CLEF_URL"),
		FromAddress:       getAddress("FROM_ADDRESS"),
		GasPrice:          getBig("GAS_PRICE"),
		GasLimit:          getInt("GAS_LIMIT", 0),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPExchange:      os.Getenv("AMQP_EXCHANGE"),
		RevenueBaseline:   getFloat("REVENUE_BASELINE", 100000),
		IdempotencyWindow: getDuration("IDEMPOTENCY_WINDOW", time.Minute),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "manteia.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg, nil
}

// CheckSubmit reports what is missing before a transaction can be sent.
func (c Config) CheckSubmit() error {
	switch {
	case c.RPCURL == "":
		return fmt.Errorf("RPC_URL is required")
	case c.FactoryAddress == (common.Address{}):
		return fmt.Errorf("MANTEIA_FACTORY_ADDRESS is required")
	case c.PrivateKey == "" && c.ClefURL == "":
		return fmt.Errorf("one of PRIVATE_KEY or CLEF_URL is required")
	case c.PrivateKey != "" && c.ClefURL != "":
		return fmt.Errorf("PRIVATE_KEY and CLEF_URL are mutually exclusive")
	case c.ClefURL != "" && c.FromAddress == (common.Address{}):
		return fmt.Errorf("FROM_ADDRESS is required with CLEF_URL")
	}
	return nil
}
