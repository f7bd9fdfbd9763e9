package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
)

// scanGuardTTL bounds how long an in-progress marker can outlive a run
// that crashed without releasing it.
const scanGuardTTL = 15 * time.Minute

// ScanGuard serializes scans of the same source across instances. The
// guard is advisory: when unavailable it permits rather than blocks.
type ScanGuard interface {
	// Acquire marks the source as being scanned. Returns
	// apperrors.ErrScanInProgress when another run holds the marker.
	Acquire(ctx context.Context, sourceID uuid.UUID) error

	// Release clears the marker. Safe when the marker already expired.
	Release(ctx context.Context, sourceID uuid.UUID)
}

type redisScanGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewScanGuard creates a Redis-backed scan guard. A nil client disables
// guarding, for single-instance deployments without Redis.
func NewScanGuard(client *redis.Client, logger *zap.Logger) ScanGuard {
	return &redisScanGuard{
		client: client,
		ttl:    scanGuardTTL,
		logger: logger.Named("scan-guard"),
	}
}

var _ ScanGuard = (*redisScanGuard)(nil)

// Acquire implements ScanGuard.
func (g *redisScanGuard) Acquire(ctx context.Context, sourceID uuid.UUID) error {
	if g.client == nil {
		return nil
	}

	acquired, err := g.client.SetNX(ctx, scanGuardKey(sourceID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		g.logger.Warn("scan guard unavailable, proceeding unguarded",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		return nil
	}
	if !acquired {
		return apperrors.ErrScanInProgress
	}
	return nil
}

// Release implements ScanGuard.
func (g *redisScanGuard) Release(ctx context.Context, sourceID uuid.UUID) {
	if g.client == nil {
		return
	}

	if err := g.client.Del(ctx, scanGuardKey(sourceID)).Err(); err != nil {
		g.logger.Warn("failed to release scan guard",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
	}
}

func scanGuardKey(sourceID uuid.UUID) string {
	return "scan:inprogress:" + sourceID.String()
}
