package onchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

var ErrNoEndpoint = errors.New("no usable RPC endpoint")

const dialTimeout = 10 * time.Second

// Dial connects to the first RPC node that answers eth_chainId. When chainID is
// non-zero, nodes reporting another chain are skipped.
func Dial(ctx context.Context, nodes []string, chainID int64) (*ethclient.Client, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: none configured", ErrNoEndpoint)
	}

	var errs []error
	for i, url := range nodes {
		client, err := dialOne(ctx, url, chainID)
		if err == nil {
			log.WithFields(log.Fields{
				"node":  i,
				"chain": chainID,
			}).Info("🔗 Connected to RPC node")
			return client, nil
		}

		log.WithError(err).WithField("node", i).Warn("RPC node unusable, trying next")
		errs = append(errs, fmt.Errorf("node %d: %w", i, err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrNoEndpoint, errors.Join(errs...))
}

func dialOne(ctx context.Context, url string, chainID int64) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if chainID != 0 && got.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %d", got, chainID)
	}
	return client, nil
}
