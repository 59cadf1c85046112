// Package handler serves the device lifecycle HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ewaste-tracker/backend/internal/device/domain"
	"ewaste-tracker/backend/internal/device/service"
	"ewaste-tracker/backend/internal/ledger"
)

const maxBodyBytes = 1 << 20

// DeviceService is the service surface the handlers use.
type DeviceService interface {
	RegisterDevice(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	UpdateStatus(ctx context.Context, in service.UpdateInput) (*service.UpdateResult, error)
	GetDeviceView(ctx context.Context, deviceID uint64) (*domain.DeviceView, error)
	ListDevices(ctx context.Context) (*service.DeviceList, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	EstimateImpact(in service.EstimateInput) (*domain.ImpactSnapshot, error)
}

// Handler serves the device routes.
type Handler struct {
	svc DeviceService
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc DeviceService) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the device routes on r. Mutating routes are wrapped in protect
// when it is non-nil.
func (h *Handler) Routes(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if protect != nil {
			r.Use(protect)
		}
		r.Post("/register-device", h.RegisterDevice)
		r.Post("/update-status", h.UpdateStatus)
	})
	r.Get("/device/{id}", h.GetDevice)
	r.Get("/devices", h.ListDevices)
	r.Get("/dashboard", h.Dashboard)
	r.Post("/estimate-impact", h.EstimateImpact)
}

type registerRequest struct {
	DeviceType string  `json:"deviceType"`
	Weight     float64 `json:"weight"`
	Location   string  `json:"location"`
}

type registerResponse struct {
	Success         bool                  `json:"success"`
	DeviceID        uint64                `json:"deviceId"`
	TransactionHash string                `json:"transactionHash"`
	Metadata        domain.Metadata       `json:"metadata"`
	ProjectedImpact domain.ImpactSnapshot `json:"projectedImpact"`
}

// RegisterDevice handles POST /register-device.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := h.svc.RegisterDevice(r.Context(), service.RegisterInput{
		DeviceType: req.DeviceType,
		WeightKg:   req.Weight,
		Location:   req.Location,
	})
	if err != nil {
		writeServiceError(w, "failed to register device", err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		Success:         true,
		DeviceID:        res.DeviceID,
		TransactionHash: res.ConfirmationRef,
		Metadata:        res.Metadata,
		ProjectedImpact: res.ProjectedImpact,
	})
}

type updateRequest struct {
	DeviceID  uint64 `json:"deviceId"`
	NewStatus string `json:"newStatus"`
}

type updateResponse struct {
	Success             bool                   `json:"success"`
	DeviceID            uint64                 `json:"deviceId"`
	NewStatus           domain.Status          `json:"newStatus"`
	TransactionHash     string                 `json:"transactionHash"`
	VerifiedImpact      *domain.ImpactSnapshot `json:"verifiedImpact,omitempty"`
	VerificationPending bool                   `json:"verificationPending,omitempty"`
}

// UpdateStatus handles POST /update-status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := h.svc.UpdateStatus(r.Context(), service.UpdateInput{DeviceID: req.DeviceID, NewStatus: req.NewStatus})
	if err != nil {
		writeServiceError(w, "failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		Success:             true,
		DeviceID:            res.DeviceID,
		NewStatus:           res.NewStatus,
		TransactionHash:     res.ConfirmationRef,
		VerifiedImpact:      res.VerifiedImpact,
		VerificationPending: res.VerificationPending,
	})
}

// deviceDTO flattens the ledger record and local metadata into one object.
// Ledger timestamps are Unix seconds, as the contract reports them.
type deviceDTO struct {
	ID                uint64            `json:"id"`
	DeviceType        domain.DeviceType `json:"deviceType"`
	Status            domain.Status     `json:"status"`
	RegisteredBy      string            `json:"registeredBy"`
	RegisteredAt      int64             `json:"registeredAt"`
	LastUpdated       int64             `json:"lastUpdated"`
	Weight            *float64          `json:"weight,omitempty"`
	Location          string            `json:"location,omitempty"`
	TransportDistance *float64          `json:"transportDistance,omitempty"`
}

func newDeviceDTO(v *domain.DeviceView) deviceDTO {
	d := deviceDTO{
		ID:           v.Device.ID,
		DeviceType:   v.Device.DeviceType,
		Status:       v.Device.Status,
		RegisteredBy: v.Device.Owner,
		RegisteredAt: v.Device.RegisteredAt.Unix(),
		LastUpdated:  v.Device.LastUpdated.Unix(),
	}
	if m := v.Metadata; m != nil {
		weight, distance := m.WeightKg, m.TransportDistanceKm
		d.Weight = &weight
		d.Location = m.Location
		d.TransportDistance = &distance
	}
	return d
}

type deviceResponse struct {
	Success         bool                   `json:"success"`
	Device          deviceDTO              `json:"device"`
	MetadataMissing bool                   `json:"metadataMissing"`
	ProjectedImpact *domain.ImpactSnapshot `json:"projectedImpact,omitempty"`
	VerifiedImpact  *domain.ImpactSnapshot `json:"verifiedImpact,omitempty"`
	Timeline        []timelineDTO          `json:"timeline"`
}

// timelineDTO carries the local confirmation time in Unix milliseconds.
type timelineDTO struct {
	Status          domain.Status `json:"status"`
	Timestamp       int64         `json:"timestamp"`
	TransactionHash string        `json:"transactionHash,omitempty"`
}

func newTimeline(entries []domain.TimelineEntry) []timelineDTO {
	out := make([]timelineDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, timelineDTO{
			Status:          e.Status,
			Timestamp:       e.Timestamp.UnixMilli(),
			TransactionHash: e.ConfirmationRef,
		})
	}
	return out
}

// GetDevice handles GET /device/{id}.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid device ID", nil)
		return
	}
	view, err := h.svc.GetDeviceView(r.Context(), id)
	if err != nil {
		writeServiceError(w, "failed to fetch device", err)
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse{
		Success:         true,
		Device:          newDeviceDTO(view),
		MetadataMissing: view.MetadataMissing,
		ProjectedImpact: view.ProjectedImpact,
		VerifiedImpact:  view.VerifiedImpact,
		Timeline:        newTimeline(view.Timeline),
	})
}

type listResponse struct {
	Success bool        `json:"success"`
	Devices []deviceDTO `json:"devices"`
	Total   uint64      `json:"total"`
	Skipped int         `json:"skipped"`
}

// ListDevices handles GET /devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListDevices(r.Context())
	if err != nil {
		writeServiceError(w, "failed to fetch devices", err)
		return
	}
	devices := make([]deviceDTO, 0, len(list.Devices))
	for i := range list.Devices {
		devices = append(devices, newDeviceDTO(&list.Devices[i]))
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Devices: devices, Total: list.Total, Skipped: list.Skipped})
}

type dashboardResponse struct {
	Success bool                  `json:"success"`
	Stats   domain.DashboardStats `json:"stats"`
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, "failed to fetch dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Success: true, Stats: *stats})
}

type estimateRequest struct {
	DeviceType        string   `json:"deviceType"`
	Weight            float64  `json:"weight"`
	TransportDistance *float64 `json:"transportDistance"`
}

type impactDTO struct {
	CO2Saved            float64 `json:"co2Saved"`
	ToxicWastePrevented float64 `json:"toxicWastePrevented"`
	SustainabilityScore int     `json:"sustainabilityScore"`
}

type estimateResponse struct {
	Success bool      `json:"success"`
	Impact  impactDTO `json:"impact"`
}

// EstimateImpact handles POST /estimate-impact.
func (h *Handler) EstimateImpact(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TransportDistance == nil {
		writeError(w, http.StatusBadRequest, "missing required field: transportDistance", nil)
		return
	}
	snap, err := h.svc.EstimateImpact(service.EstimateInput{
		DeviceType:          req.DeviceType,
		WeightKg:            req.Weight,
		TransportDistanceKm: *req.TransportDistance,
	})
	if err != nil {
		writeServiceError(w, "failed to estimate impact", err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{Success: true, Impact: impactDTO{
		CO2Saved:            snap.CO2SavedKg,
		ToxicWastePrevented: snap.ToxicWastePreventedKg,
		SustainabilityScore: snap.SustainabilityScore,
	}})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

type errorResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	Details         string `json:"details,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// writeServiceError maps service error kinds to status codes. msg is used for
// ledger and internal failures, where the cause goes to details.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	var (
		verr *domain.ValidationError
		nerr *domain.NotFoundError
		rerr *ledger.IdentifierResolutionError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), nil)
	case errors.As(err, &nerr):
		writeError(w, http.StatusNotFound, "device not found in "+nerr.Store, nil)
	case errors.As(err, &rerr):
		slog.Error("device: identifier resolution failed", "confirmation_ref", rerr.ConfirmationRef, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:           "identifier resolution failed",
			Details:         err.Error(),
			TransactionHash: rerr.ConfirmationRef,
		})
	case errors.Is(err, domain.ErrLedgerCall):
		slog.Error("device: ledger call failed", "op", msg, "error", err)
		writeError(w, http.StatusBadGateway, msg, err)
	default:
		slog.Error("device: request failed", "op", msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	resp := errorResponse{Error: msg}
	if cause != nil {
		resp.Details = cause.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
