package errors

import (
	"errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrNilUser            = errors.New("user is nil")
	ErrEquipmentNotFound  = errors.New("equipment not found")
	ErrAssetCodeExists    = errors.New("asset code already exists")
	ErrNilEquipment       = errors.New("equipment is nil")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidImage       = errors.New("invalid image")
	ErrImageTooLarge      = errors.New("image too large")
	ErrInternal           = errors.New("internal error")
)
