// Package service assembles a verification runner from settings.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/config"
	abiloader "github.com/codatta/codattaOnchainDataVerify/pkgs/abi"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/fingerprintapi"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/onchain"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/recordcache"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/verification"
)

const remoteFingerprintTimeout = 15 * time.Second

// Service holds the wired collaborators of a verification run.
type Service struct {
	Settings   *config.Settings
	Calculator *crypto.Calculator
	Generator  crypto.FingerprintGenerator
	Reader     onchain.FingerprintReader
	Store      *onchain.RecordStore
	Cache      *recordcache.CachedReader

	client *ethclient.Client
	redis  *redis.Client
}

// Build dials the ledger and wires the runner's collaborators.
func Build(ctx context.Context, settings *config.Settings) (*Service, error) {
	client, err := onchain.Dial(ctx, settings.RPCNodes, settings.ChainID)
	if err != nil {
		return nil, err
	}

	svc, err := Assemble(ctx, settings, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	svc.client = client
	return svc, nil
}

// Assemble wires the service around an existing contract caller.
func Assemble(ctx context.Context, settings *config.Settings, caller ethereum.ContractCaller) (*Service, error) {
	parsed, err := abiloader.LoadRecordStoreABI(settings.RecordABIFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load record store ABI: %w", err)
	}

	svc := &Service{
		Settings:   settings,
		Calculator: crypto.NewCalculator(),
	}

	svc.Store = onchain.NewRecordStore(caller, settings.RecordContractAddress(), parsed,
		onchain.WithWindow(settings.QueryOffset, settings.QueryLimit))
	svc.Reader = svc.Store

	if settings.CacheEnabled {
		if addr := settings.RedisAddr(); addr != "" {
			svc.redis = redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: settings.RedisPassword,
				DB:       settings.RedisDB,
			})
			if err := svc.redis.Ping(ctx).Err(); err != nil {
				log.WithError(err).WithField("addr", addr).Warn("⚠️ Redis unavailable, record cache falls back to local tier")
			}
		}

		svc.Cache, err = recordcache.New(svc.Store, recordcache.Config{
			Size:           settings.CacheSize,
			TTL:            settings.CacheTTL,
			Redis:          svc.redis,
			RecordContract: settings.RecordContract,
		})
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.Reader = svc.Cache
	}

	switch settings.FingerprintMode {
	case config.FingerprintModeRemote:
		svc.Generator = fingerprintapi.NewClient(settings.FingerprintAPIURL, remoteFingerprintTimeout)
	default:
		svc.Generator = svc.Calculator
	}

	log.WithFields(log.Fields{
		"contract":    svc.Store.Contract().Hex(),
		"fingerprint": settings.FingerprintMode,
		"cache":       settings.CacheEnabled,
	}).Info("✅ Verification service ready")

	return svc, nil
}

// NewRunner builds a runner from the settings; extra options override them.
func (s *Service) NewRunner(extra ...verification.Option) *verification.Runner {
	opts := []verification.Option{
		verification.WithDelays(verification.Delays{
			Local:   s.Settings.LocalStepDelay,
			OnChain: s.Settings.OnChainStepDelay,
			Compare: s.Settings.CompareStepDelay,
		}),
		verification.WithStageTimeout(s.Settings.StageTimeout),
		verification.WithPrefetch(s.Settings.PrefetchOnChain),
	}
	return verification.NewRunner(s.Generator, s.Reader, append(opts, extra...)...)
}

// Close releases the ledger and Redis connections.
func (s *Service) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.WithError(err).Debug("Failed to close Redis client")
		}
	}
	if s.client != nil {
		s.client.Close()
	}
}
