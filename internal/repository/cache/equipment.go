// Package cache decorates repositories with a Redis read-through cache.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/observability"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/redis"
	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/repository"
)

// EquipmentRepository caches single-equipment lookups. Cache errors are
// logged and fall through to the wrapped repository.
type EquipmentRepository struct {
	next  repository.EquipmentRepository
	redis redis.RedisClient
	ttl   time.Duration
}

var _ repository.EquipmentRepository = (*EquipmentRepository)(nil)

func NewEquipmentRepository(next repository.EquipmentRepository, client redis.RedisClient, ttl time.Duration) *EquipmentRepository {
	return &EquipmentRepository{next: next, redis: client, ttl: ttl}
}

func EquipmentKey(id int32) string {
	return fmt.Sprintf("equipment:%d", id)
}

func (r *EquipmentRepository) GetByID(ctx context.Context, id int32) (*models.Equipment, error) {
	key := EquipmentKey(id)

	cached, err := r.redis.Get(ctx, key)
	switch {
	case err == nil:
		var e models.Equipment
		if err := json.Unmarshal([]byte(cached), &e); err == nil {
			observability.CacheLookups.WithLabelValues("hit").Inc()
			return &e, nil
		}
		slog.Error("failed to unmarshal cached equipment", "equipment_id", id, "error", err)
	case stderrors.Is(err, redis.ErrKeyNotFound):
		observability.CacheLookups.WithLabelValues("miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues("error").Inc()
		slog.Error("failed to get equipment from Redis", "equipment_id", id, "error", err)
	}

	e, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(e); err != nil {
		slog.Error("failed to marshal equipment", "equipment_id", id, "error", err)
	} else if err := r.redis.Set(ctx, key, string(data), r.ttl); err != nil {
		slog.Error("failed to cache equipment", "equipment_id", id, "error", err)
	}
	return e, nil
}

func (r *EquipmentRepository) Create(ctx context.Context, e *models.Equipment) error {
	return r.next.Create(ctx, e)
}

func (r *EquipmentRepository) List(ctx context.Context) ([]models.Equipment, error) {
	return r.next.List(ctx)
}

func (r *EquipmentRepository) Update(ctx context.Context, e *models.Equipment) error {
	if err := r.next.Update(ctx, e); err != nil {
		return err
	}
	r.invalidate(ctx, e.ID)
	return nil
}

func (r *EquipmentRepository) Delete(ctx context.Context, id int32) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *EquipmentRepository) invalidate(ctx context.Context, id int32) {
	if err := r.redis.Del(ctx, EquipmentKey(id)); err != nil {
		slog.Error("failed to invalidate cached equipment", "equipment_id", id, "error", err)
	}
}
