package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/repository"
	"github.com/patrimonio/patrimonio-webapi/internal/storage"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type EquipmentInput struct {
	Name        string
	AssetCode   string
	Description *string
	Active      bool
}

type EquipmentService interface {
	Create(ctx context.Context, in EquipmentInput) (*models.Equipment, error)
	Get(ctx context.Context, id int32) (*models.Equipment, error)
	List(ctx context.Context) ([]models.Equipment, error)
	Update(ctx context.Context, id int32, in EquipmentInput) (*models.Equipment, error)
	Delete(ctx context.Context, id int32) error
	AttachImage(ctx context.Context, id int32, filename string, r io.Reader) (*models.Equipment, error)
}

type equipmentService struct {
	equipmentRepo repository.EquipmentRepository
	images        storage.ImageStore
}

func NewEquipmentService(equipmentRepo repository.EquipmentRepository, images storage.ImageStore) *equipmentService {
	return &equipmentService{equipmentRepo: equipmentRepo, images: images}
}

func (s *equipmentService) Create(ctx context.Context, in EquipmentInput) (*models.Equipment, error) {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "CreateEquipment")
	defer span.End()

	e := &models.Equipment{
		Name:        in.Name,
		AssetCode:   in.AssetCode,
		Description: in.Description,
		Active:      in.Active,
	}
	if err := s.equipmentRepo.Create(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "equipment creation failed")
		return nil, domainError(err, "failed to create equipment", pkgerrors.ErrAssetCodeExists, pkgerrors.ErrInvalidInput)
	}

	span.SetAttributes(attribute.Int("equipment_id", int(e.ID)))
	return e, nil
}

func (s *equipmentService) Get(ctx context.Context, id int32) (*models.Equipment, error) {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "GetEquipment")
	defer span.End()

	e, err := s.equipmentRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "equipment lookup failed")
		return nil, domainError(err, "failed to get equipment", pkgerrors.ErrEquipmentNotFound)
	}
	return e, nil
}

func (s *equipmentService) List(ctx context.Context) ([]models.Equipment, error) {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "ListEquipment")
	defer span.End()

	list, err := s.equipmentRepo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "equipment listing failed")
		return nil, domainError(err, "failed to list equipment")
	}
	return list, nil
}

func (s *equipmentService) Update(ctx context.Context, id int32, in EquipmentInput) (*models.Equipment, error) {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "UpdateEquipment")
	defer span.End()
	span.SetAttributes(attribute.Int("equipment_id", int(id)))

	e, err := s.equipmentRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "equipment lookup failed")
		return nil, domainError(err, "failed to get equipment", pkgerrors.ErrEquipmentNotFound)
	}

	e.Name = in.Name
	e.AssetCode = in.AssetCode
	e.Description = in.Description
	e.Active = in.Active
	if err := s.equipmentRepo.Update(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "equipment update failed")
		return nil, domainError(err, "failed to update equipment",
			pkgerrors.ErrEquipmentNotFound, pkgerrors.ErrAssetCodeExists, pkgerrors.ErrInvalidInput)
	}
	return e, nil
}

// Delete removes the record and then, best effort, its image file.
func (s *equipmentService) Delete(ctx context.Context, id int32) error {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "DeleteEquipment")
	defer span.End()
	span.SetAttributes(attribute.Int("equipment_id", int(id)))

	e, err := s.equipmentRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "equipment lookup failed")
		return domainError(err, "failed to get equipment", pkgerrors.ErrEquipmentNotFound)
	}
	if err := s.equipmentRepo.Delete(ctx, id); err != nil {
		span.SetStatus(codes.Error, "equipment deletion failed")
		return domainError(err, "failed to delete equipment", pkgerrors.ErrEquipmentNotFound)
	}

	if e.Image != nil {
		s.removeImage(ctx, id, *e.Image)
	}
	return nil
}

// AttachImage stores the upload and records its file name on the equipment,
// replacing any previous image.
func (s *equipmentService) AttachImage(ctx context.Context, id int32, filename string, r io.Reader) (*models.Equipment, error) {
	tracer := otel.Tracer("equipment-service")
	ctx, span := tracer.Start(ctx, "AttachImage")
	defer span.End()
	span.SetAttributes(attribute.Int("equipment_id", int(id)))

	e, err := s.equipmentRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "equipment lookup failed")
		return nil, domainError(err, "failed to get equipment", pkgerrors.ErrEquipmentNotFound)
	}

	name, err := s.images.Save(ctx, filename, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image storage failed")
		if stderrors.Is(err, pkgerrors.ErrInvalidImage) || stderrors.Is(err, pkgerrors.ErrImageTooLarge) {
			return nil, err
		}
		slog.Error("failed to store image", "equipment_id", id, "error", err)
		return nil, fmt.Errorf("%w: failed to store image", pkgerrors.ErrInternal)
	}

	previous := e.Image
	e.Image = &name
	if err := s.equipmentRepo.Update(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "equipment update failed")
		s.removeImage(ctx, id, name)
		return nil, domainError(err, "failed to update equipment", pkgerrors.ErrEquipmentNotFound)
	}

	if previous != nil && *previous != name {
		s.removeImage(ctx, id, *previous)
	}
	slog.Info("equipment image attached", "equipment_id", id, "image", name)
	return e, nil
}

func (s *equipmentService) removeImage(ctx context.Context, id int32, name string) {
	if err := s.images.Remove(ctx, name); err != nil {
		slog.Warn("failed to remove image", "equipment_id", id, "image", name, "error", err)
	}
}
