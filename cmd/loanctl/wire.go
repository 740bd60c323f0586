package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/yourorg/manteia/internal/config"
	"github.com/yourorg/manteia/internal/loan"
	"github.com/yourorg/manteia/pkg/events"
	"github.com/yourorg/manteia/pkg/idempotency"
	"github.com/yourorg/manteia/pkg/signer"
	"github.com/yourorg/manteia/pkg/store"
)

// app is everything a submission needs, built once per process.
type app struct {
	orch    *loan.Orchestrator
	store   *store.GormStore
	from    common.Address
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log zerolog.Logger) (_ *app, err error) {
	if err := cfg.CheckSubmit(); err != nil {
		return nil, err
	}
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// -----------------------------------------------------------------
	// Signer
	// -----------------------------------------------------------------
	client, err := signer.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	var sign bind.SignerFn
	if cfg.ClefURL != "" {
		a.from = cfg.FromAddress
		if sign, err = signer.ClefSigner(cfg.ClefURL, cfg.ChainID); err != nil {
			return nil, err
		}
	} else if a.from, sign, err = signer.KeyedSigner(cfg.PrivateKey, cfg.ChainID); err != nil {
		return nil, err
	}
	var opts []signer.Option
	if cfg.GasPrice != nil || cfg.GasLimit != 0 {
		opts = append(opts, signer.WithLegacyGas(cfg.GasPrice, cfg.GasLimit))
	}
	eth := signer.NewEthSigner(client, a.from, sign, opts...)

	// -----------------------------------------------------------------
	// Store
	// -----------------------------------------------------------------
	if a.store, err = store.Open(cfg.DatabaseURL); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	// -----------------------------------------------------------------
	// Idempotency guard
	// -----------------------------------------------------------------
	var guard idempotency.Guard
	if cfg.RedisURL != "" {
		rdb, err := idempotency.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		guard = idempotency.NewRedisGuard(rdb, "")
	} else {
		mem, err := idempotency.NewMemoryGuard(4096)
		if err != nil {
			return nil, err
		}
		guard = mem
	}

	// -----------------------------------------------------------------
	// Status reporting
	// -----------------------------------------------------------------
	reporters := loan.MultiReporter{loan.LogReporter{Log: log}}
	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		reporters = append(reporters, pub)
	}

	factoryABI, err := signer.FactoryABI()
	if err != nil {
		return nil, err
	}
	a.orch, err = loan.New(loan.Config{
		Factory:           cfg.FactoryAddress,
		ABI:               factoryABI,
		RevenueBaseline:   cfg.RevenueBaseline,
		IdempotencyWindow: cfg.IdempotencyWindow,
	}, eth, a.store,
		loan.WithGuard(guard),
		loan.WithReporter(reporters),
		loan.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return a, nil
}
