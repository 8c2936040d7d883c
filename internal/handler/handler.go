package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/pipeline"
	service "github.com/patrimonio/patrimonio-webapi/internal/services"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
)

type Handler struct {
	users        service.UserService
	equipment    service.EquipmentService
	validate     *validator.Validate
	maxImageSize int64
}

func NewHandler(users service.UserService, equipment service.EquipmentService, maxImageSize int64) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		users:        users,
		equipment:    equipment,
		validate:     v,
		maxImageSize: maxImageSize,
	}
}

// RegisterRoutes adds every controller action to t with its access policy.
func (h *Handler) RegisterRoutes(t *pipeline.RouteTable) {
	admin := pipeline.RequireRoles(models.RoleAdmin)

	t.HandleFunc(http.MethodPost, "/api/login", h.Login, pipeline.Anonymous)

	t.HandleFunc(http.MethodGet, "/api/users/me", h.CurrentUser, pipeline.Authenticated)
	t.HandleFunc(http.MethodGet, "/api/users", h.ListUsers, admin)
	t.HandleFunc(http.MethodPost, "/api/users", h.CreateUser, admin)
	t.HandleFunc(http.MethodGet, "/api/users/{id:[0-9]+}", h.GetUser, admin)
	t.HandleFunc(http.MethodPut, "/api/users/{id:[0-9]+}", h.UpdateUser, admin)
	t.HandleFunc(http.MethodDelete, "/api/users/{id:[0-9]+}", h.DeleteUser, admin)

	t.HandleFunc(http.MethodGet, "/api/equipment", h.ListEquipment, pipeline.Authenticated)
	t.HandleFunc(http.MethodPost, "/api/equipment", h.CreateEquipment, pipeline.Authenticated)
	t.HandleFunc(http.MethodGet, "/api/equipment/{id:[0-9]+}", h.GetEquipment, pipeline.Authenticated)
	t.HandleFunc(http.MethodPut, "/api/equipment/{id:[0-9]+}", h.UpdateEquipment, pipeline.Authenticated)
	t.HandleFunc(http.MethodDelete, "/api/equipment/{id:[0-9]+}", h.DeleteEquipment, admin)
	t.HandleFunc(http.MethodPost, "/api/equipment/{id:[0-9]+}/image", h.UploadEquipmentImage, pipeline.Authenticated)
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	pipeline.WriteJSON(w, status, v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as a bare 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound), errors.Is(err, pkgerrors.ErrEquipmentNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrUserAlreadyExists), errors.Is(err, pkgerrors.ErrAssetCodeExists):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrInvalidInput), errors.Is(err, pkgerrors.ErrInvalidImage):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pkgerrors.ErrImageTooLarge):
		h.writeError(w, http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	default:
		slog.Error("request failed",
			"request_id", pipeline.RequestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the caller may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return false
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.writeError(w, http.StatusBadRequest, err)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = validationMessage(fe)
	}
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return 0, false
	}
	return int32(id), true
}
