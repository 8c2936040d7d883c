package handler

import (
	"errors"
	"net/http"
	"strconv"

	service "github.com/patrimonio/patrimonio-webapi/internal/services"
)

type EquipmentRequest struct {
	Name        string  `json:"name" validate:"required,max=150"`
	AssetCode   string  `json:"asset_code" validate:"required,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`
}

func (req EquipmentRequest) input() service.EquipmentInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return service.EquipmentInput{
		Name:        req.Name,
		AssetCode:   req.AssetCode,
		Description: req.Description,
		Active:      active,
	}
}

func itoa(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := h.equipment.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	e, err := h.equipment.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e)
}

func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req EquipmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.equipment.Create(r.Context(), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/equipment/"+itoa(e.ID))
	h.writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req EquipmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.equipment.Update(r.Context(), id, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.equipment.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// multipartOverhead covers boundaries and part headers around the file.
const multipartOverhead = 64 << 10

func (h *Handler) UploadEquipmentImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, errors.New("image too large"))
			return
		}
		h.writeError(w, http.StatusBadRequest, errors.New("expected multipart form with an image field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: map[string]string{"image": "is required"},
		})
		return
	}
	defer file.Close()

	e, err := h.equipment.AttachImage(r.Context(), id, header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, e)
}
