// Package mocks provides testify mocks for the service interfaces.
package mocks

import (
	"context"
	"io"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
	service "github.com/patrimonio/patrimonio-webapi/internal/services"
	"github.com/stretchr/testify/mock"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, in service.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id int32) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id int32, in service.UpdateUserInput) (*models.User, error) {
	args := m.Called(ctx, id, in)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	args := m.Called(ctx, name, email, password)
	return args.Error(0)
}

type MockEquipmentService struct {
	mock.Mock
}

func (m *MockEquipmentService) Create(ctx context.Context, in service.EquipmentInput) (*models.Equipment, error) {
	args := m.Called(ctx, in)
	e, _ := args.Get(0).(*models.Equipment)
	return e, args.Error(1)
}

func (m *MockEquipmentService) Get(ctx context.Context, id int32) (*models.Equipment, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.Equipment)
	return e, args.Error(1)
}

func (m *MockEquipmentService) List(ctx context.Context) ([]models.Equipment, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Equipment)
	return list, args.Error(1)
}

func (m *MockEquipmentService) Update(ctx context.Context, id int32, in service.EquipmentInput) (*models.Equipment, error) {
	args := m.Called(ctx, id, in)
	e, _ := args.Get(0).(*models.Equipment)
	return e, args.Error(1)
}

func (m *MockEquipmentService) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEquipmentService) AttachImage(ctx context.Context, id int32, filename string, r io.Reader) (*models.Equipment, error) {
	args := m.Called(ctx, id, filename, r)
	e, _ := args.Get(0).(*models.Equipment)
	return e, args.Error(1)
}
