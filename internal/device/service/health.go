package service

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// defaultBalanceTTL bounds how long a balance lookup is reused by Health.
const defaultBalanceTTL = 30 * time.Second

const balanceKey = "operator"

// HealthReport describes ledger connectivity. Cause is set when unhealthy.
type HealthReport struct {
	Healthy      bool
	Balance      string
	TotalDevices uint64
	Cause        string
}

// PolicyChecker is implemented by policies that can self-check.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

type balanceCache struct {
	cache *ttlcache.Cache[string, string]
}

func newBalanceCache(ttl time.Duration) *balanceCache {
	return &balanceCache{cache: ttlcache.New[string, string](ttlcache.WithTTL[string, string](ttl))}
}

// Health reports the operator balance and device count from the ledger, and
// whether the lifecycle policy still evaluates. Balance lookups are cached.
func (s *DeviceService) Health(ctx context.Context) *HealthReport {
	balance, err := s.cachedBalance(ctx)
	if err != nil {
		return &HealthReport{Cause: err.Error()}
	}
	total, err := s.ledger.TotalDevices(ctx)
	if err != nil {
		return &HealthReport{Balance: balance, Cause: err.Error()}
	}
	if pc, ok := s.policy.(PolicyChecker); ok {
		if err := pc.HealthCheck(ctx); err != nil {
			return &HealthReport{Balance: balance, TotalDevices: total, Cause: err.Error()}
		}
	}
	return &HealthReport{Healthy: true, Balance: balance, TotalDevices: total}
}

func (s *DeviceService) cachedBalance(ctx context.Context) (string, error) {
	if item := s.balance.cache.Get(balanceKey, ttlcache.WithDisableTouchOnHit[string, string]()); item != nil {
		return item.Value(), nil
	}
	balance, err := s.ledger.Balance(ctx)
	if err != nil {
		return "", err
	}
	s.balance.cache.Set(balanceKey, balance, ttlcache.DefaultTTL)
	return balance, nil
}
