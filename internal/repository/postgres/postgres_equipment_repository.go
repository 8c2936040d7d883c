package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const equipmentTracer = "equipment-repository"

type PostgresEquipmentRepository struct {
	db *sql.DB
}

func NewPostgresEquipmentRepository(db *sql.DB) *PostgresEquipmentRepository {
	return &PostgresEquipmentRepository{db: db}
}

func validateEquipment(e *models.Equipment) error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
	case utf8.RuneCountInString(e.Name) > 150:
		return fmt.Errorf("%w: name too long", pkgerrors.ErrInvalidInput)
	case strings.TrimSpace(e.AssetCode) == "":
		return fmt.Errorf("%w: asset_code is required", pkgerrors.ErrInvalidInput)
	case utf8.RuneCountInString(e.AssetCode) > 50:
		return fmt.Errorf("%w: asset_code too long", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func (r *PostgresEquipmentRepository) Create(ctx context.Context, e *models.Equipment) (err error) {
	ctx, span, done := startCall(ctx, equipmentTracer, "CreateEquipment")
	defer done(&err)

	if e == nil {
		err = pkgerrors.ErrNilEquipment
		slog.Error("failed to create equipment", "method", "Create", "error", err)
		return err
	}
	if err = validateEquipment(e); err != nil {
		slog.Error("invalid equipment", "method", "Create", "asset_code", e.AssetCode, "error", err)
		return err
	}
	span.SetAttributes(attribute.String("asset_code", e.AssetCode))

	query := `INSERT INTO equipment (name, asset_code, description, image, active) VALUES ($1, $2, $3, $4, $5) RETURNING id, registered_at`
	err = r.db.QueryRowContext(ctx, query, e.Name, e.AssetCode, e.Description, e.Image, e.Active).
		Scan(&e.ID, &e.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrAssetCodeExists
			slog.Warn("asset code already exists", "method", "Create", "asset_code", e.AssetCode)
			return err
		}
		slog.Error("failed to create equipment", "method", "Create", "asset_code", e.AssetCode, "error", err)
		err = fmt.Errorf("failed to create equipment: %w", err)
		return err
	}

	slog.Info("equipment created", "method", "Create", "equipment_id", e.ID, "asset_code", e.AssetCode)
	return nil
}

func (r *PostgresEquipmentRepository) GetByID(ctx context.Context, id int32) (e *models.Equipment, err error) {
	ctx, span, done := startCall(ctx, equipmentTracer, "GetEquipmentByID")
	defer done(&err)
	span.SetAttributes(attribute.Int("equipment_id", int(id)))

	var eq models.Equipment
	query := `SELECT id, name, asset_code, description, image, active, registered_at FROM equipment WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).
		Scan(&eq.ID, &eq.Name, &eq.AssetCode, &eq.Description, &eq.Image, &eq.Active, &eq.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrEquipmentNotFound
		slog.Warn("equipment not found", "method", "GetByID", "equipment_id", id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get equipment by id", "method", "GetByID", "equipment_id", id, "error", err)
		err = fmt.Errorf("failed to get equipment by id: %w", err)
		return nil, err
	}
	return &eq, nil
}

func (r *PostgresEquipmentRepository) List(ctx context.Context) (list []models.Equipment, err error) {
	ctx, _, done := startCall(ctx, equipmentTracer, "ListEquipment")
	defer done(&err)

	query := `SELECT id, name, asset_code, description, image, active, registered_at FROM equipment ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list equipment", "method", "List", "error", err)
		err = fmt.Errorf("failed to list equipment: %w", err)
		return nil, err
	}
	defer rows.Close()

	list = make([]models.Equipment, 0)
	for rows.Next() {
		var eq models.Equipment
		if err = rows.Scan(&eq.ID, &eq.Name, &eq.AssetCode, &eq.Description, &eq.Image, &eq.Active, &eq.RegisteredAt); err != nil {
			err = fmt.Errorf("failed to scan equipment: %w", err)
			return nil, err
		}
		list = append(list, eq)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("failed to iterate equipment: %w", err)
		return nil, err
	}
	return list, nil
}

func (r *PostgresEquipmentRepository) Update(ctx context.Context, e *models.Equipment) (err error) {
	ctx, span, done := startCall(ctx, equipmentTracer, "UpdateEquipment")
	defer done(&err)

	if e == nil {
		err = pkgerrors.ErrNilEquipment
		return err
	}
	if err = validateEquipment(e); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("equipment_id", int(e.ID)))

	query := `UPDATE equipment SET name = $1, asset_code = $2, description = $3, image = $4, active = $5 WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, e.Name, e.AssetCode, e.Description, e.Image, e.Active, e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrAssetCodeExists
			return err
		}
		slog.Error("failed to update equipment", "method", "Update", "equipment_id", e.ID, "error", err)
		err = fmt.Errorf("failed to update equipment: %w", err)
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrEquipmentNotFound
		return err
	}

	slog.Info("equipment updated", "method", "Update", "equipment_id", e.ID)
	return nil
}

func (r *PostgresEquipmentRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, span, done := startCall(ctx, equipmentTracer, "DeleteEquipment")
	defer done(&err)
	span.SetAttributes(attribute.Int("equipment_id", int(id)))

	res, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete equipment", "method", "Delete", "equipment_id", id, "error", err)
		err = fmt.Errorf("failed to delete equipment: %w", err)
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrEquipmentNotFound
		return err
	}

	slog.Info("equipment deleted", "method", "Delete", "equipment_id", id)
	return nil
}
