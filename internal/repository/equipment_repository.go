package repository

import (
	"context"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
)

type EquipmentRepository interface {
	Create(ctx context.Context, equipment *models.Equipment) error
	GetByID(ctx context.Context, id int32) (*models.Equipment, error)
	List(ctx context.Context) ([]models.Equipment, error)
	Update(ctx context.Context, equipment *models.Equipment) error
	Delete(ctx context.Context, id int32) error
}
