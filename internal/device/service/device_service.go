package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"ewaste-tracker/backend/internal/clock"
	"ewaste-tracker/backend/internal/device/domain"
	"ewaste-tracker/backend/internal/impact"
	"ewaste-tracker/backend/internal/ledger"
	"ewaste-tracker/backend/internal/telemetry"
	telemetrydomain "ewaste-tracker/backend/internal/telemetry/domain"
)

// EventSource is the source recorded on lifecycle events published by the service.
const EventSource = "device-service"

// Ledger is the subset of the ledger adapter used by the service.
type Ledger interface {
	RegisterDevice(ctx context.Context, deviceType domain.DeviceType) (ledger.Registration, error)
	UpdateStatus(ctx context.Context, deviceID uint64, status domain.Status) (string, error)
	GetDevice(ctx context.Context, deviceID uint64) (*domain.DeviceRecord, error)
	TotalDevices(ctx context.Context) (uint64, error)
	Balance(ctx context.Context) (string, error)
}

// RecordStore is the local record store used by the service.
type RecordStore interface {
	GetMetadata(ctx context.Context, deviceID uint64) (*domain.Metadata, error)
	GetProjectedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error)
	GetVerifiedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error)
	GetTimeline(ctx context.Context, deviceID uint64) ([]domain.TimelineEntry, error)
	SaveMetadata(ctx context.Context, m *domain.Metadata) error
	SaveProjectedImpact(ctx context.Context, s *domain.ImpactSnapshot) error
	SaveVerifiedImpact(ctx context.Context, s *domain.ImpactSnapshot) error
	AppendTimeline(ctx context.Context, deviceID uint64, entry domain.TimelineEntry) error
}

// TransitionPolicy decides whether a device may move to a requested status.
type TransitionPolicy interface {
	AllowTransition(ctx context.Context, deviceID uint64, target domain.Status) (bool, error)
}

// RegisterInput is a registration request.
type RegisterInput struct {
	DeviceType string
	WeightKg   float64
	Location   string
}

// RegisterResult is returned by RegisterDevice.
type RegisterResult struct {
	DeviceID        uint64
	ConfirmationRef string
	Metadata        domain.Metadata
	ProjectedImpact domain.ImpactSnapshot
}

// UpdateInput is a status update request.
type UpdateInput struct {
	DeviceID  uint64
	NewStatus string
}

// UpdateResult is returned by UpdateStatus. VerificationPending is set when the
// device reached the terminal status but its Verified snapshot could not be
// computed yet; it is computed on the next read.
type UpdateResult struct {
	DeviceID            uint64
	NewStatus           domain.Status
	ConfirmationRef     string
	VerifiedImpact      *domain.ImpactSnapshot
	VerificationPending bool
}

// EstimateInput is an impact estimate request.
type EstimateInput struct {
	DeviceType          string
	WeightKg            float64
	TransportDistanceKm float64
}

// DeviceList is returned by ListDevices. Total is the ledger's device count;
// Skipped counts records that could not be fetched.
type DeviceList struct {
	Devices []domain.DeviceView
	Total   uint64
	Skipped int
}

// DeviceService reconciles ledger state with the local record store and
// aggregates fleet statistics.
type DeviceService struct {
	ledger  Ledger
	store   RecordStore
	policy  TransitionPolicy
	events  telemetry.EventEmitter
	clock   clock.Clock
	metrics *serviceMetrics
	balance *balanceCache
}

// NewDeviceService returns a DeviceService with the given dependencies.
// events may be nil. clk defaults to the real clock when nil.
func NewDeviceService(
	ledger Ledger,
	store RecordStore,
	policy TransitionPolicy,
	events telemetry.EventEmitter,
	clk clock.Clock,
) *DeviceService {
	if clk == nil {
		clk = clock.Real()
	}
	return &DeviceService{
		ledger:  ledger,
		store:   store,
		policy:  policy,
		events:  events,
		clock:   clk,
		metrics: newServiceMetrics(),
		balance: newBalanceCache(defaultBalanceTTL),
	}
}

// RegisterDevice validates the request, registers the device on the ledger and
// then records metadata, the projected impact and the first timeline entry.
// Nothing is written locally unless the ledger registration succeeds.
func (s *DeviceService) RegisterDevice(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	deviceType, err := validateDeviceType(in.DeviceType)
	if err != nil {
		return nil, err
	}
	if err := validateWeight(in.WeightKg); err != nil {
		return nil, err
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return nil, domain.NewValidationError("location", "is required")
	}
	distance := impact.EstimateTransportDistance(location)

	reg, err := s.ledger.RegisterDevice(ctx, deviceType)
	if err != nil {
		return nil, err
	}

	meta := domain.Metadata{
		DeviceID:            reg.ID,
		WeightKg:            in.WeightKg,
		Location:            location,
		TransportDistanceKm: distance,
	}
	if err := s.store.SaveMetadata(ctx, &meta); err != nil {
		return nil, err
	}
	projected, err := impact.Project(reg.ID, deviceType, in.WeightKg, distance)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveProjectedImpact(ctx, &projected); err != nil {
		return nil, err
	}
	if err := s.store.AppendTimeline(ctx, reg.ID, domain.TimelineEntry{
		Status:          domain.InitialStatus,
		Timestamp:       s.clock.Now(),
		ConfirmationRef: reg.ConfirmationRef,
	}); err != nil {
		return nil, err
	}

	slog.Info("device: registered", "device_id", reg.ID, "device_type", deviceType, "confirmation_ref", reg.ConfirmationRef)
	s.metrics.registered(ctx, deviceType)
	ev := s.newEvent(telemetrydomain.EventDeviceRegistered, reg.ID, string(domain.InitialStatus), reg.ConfirmationRef)
	ev.DeviceType = string(deviceType)
	ev.Impact = &projected
	telemetry.EmitAsync(s.events, ev)

	return &RegisterResult{
		DeviceID:        reg.ID,
		ConfirmationRef: reg.ConfirmationRef,
		Metadata:        meta,
		ProjectedImpact: projected,
	}, nil
}

// UpdateStatus moves a registered device to Collected or Recycled. On
// Recycled the Verified impact is computed from the ledger's device type and
// the stored metadata; a device gets at most one Verified snapshot.
func (s *DeviceService) UpdateStatus(ctx context.Context, in UpdateInput) (*UpdateResult, error) {
	if in.DeviceID == 0 {
		return nil, domain.NewValidationError("deviceId", "must be a positive integer")
	}
	status := domain.Status(in.NewStatus)
	if status == "" {
		return nil, domain.NewValidationError("newStatus", "is required")
	}
	// The policy can only narrow this set.
	if !status.Requestable() {
		return nil, domain.NewValidationError("newStatus", fmt.Sprintf("%q is not a requestable status; must be Collected or Recycled", in.NewStatus))
	}
	allowed, err := s.policy.AllowTransition(ctx, in.DeviceID, status)
	if err != nil {
		return nil, fmt.Errorf("evaluate lifecycle policy: %w", err)
	}
	if !allowed {
		return nil, domain.NewValidationError("newStatus", fmt.Sprintf("transition to %q is not allowed; must be Collected or Recycled", in.NewStatus))
	}

	meta, err := s.store.GetMetadata(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, &domain.NotFoundError{Store: "metadata store", ID: in.DeviceID}
	}

	ref, err := s.ledger.UpdateStatus(ctx, in.DeviceID, status)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendTimeline(ctx, in.DeviceID, domain.TimelineEntry{
		Status:          status,
		Timestamp:       s.clock.Now(),
		ConfirmationRef: ref,
	}); err != nil {
		return nil, err
	}
	s.metrics.statusUpdated(ctx, status)
	telemetry.EmitAsync(s.events, s.newEvent(telemetrydomain.EventStatusUpdated, in.DeviceID, string(status), ref))

	res := &UpdateResult{DeviceID: in.DeviceID, NewStatus: status, ConfirmationRef: ref}
	if !status.IsTerminal() {
		return res, nil
	}

	existing, err := s.store.GetVerifiedImpact(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		res.VerifiedImpact = existing
		return res, nil
	}
	rec, err := s.ledger.GetDevice(ctx, in.DeviceID)
	if err != nil {
		// The status change is already on the ledger; the snapshot is repaired on read.
		slog.Warn("device: verified impact deferred, ledger read failed", "device_id", in.DeviceID, "error", err)
		res.VerificationPending = true
		return res, nil
	}
	verified, err := s.verify(ctx, rec, meta)
	if err != nil {
		slog.Warn("device: verified impact deferred", "device_id", in.DeviceID, "error", err)
		res.VerificationPending = true
		return res, nil
	}
	res.VerifiedImpact = verified
	slog.Info("device: recycled, impact verified", "device_id", in.DeviceID, "co2_saved_kg", verified.CO2SavedKg)
	return res, nil
}

// GetDeviceView merges the ledger record with local data. A device the
// ledger knows but the store does not is returned with MetadataMissing set.
func (s *DeviceService) GetDeviceView(ctx context.Context, deviceID uint64) (*domain.DeviceView, error) {
	if deviceID == 0 {
		return nil, domain.NewValidationError("id", "must be a positive integer")
	}
	rec, err := s.ledger.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, rec)
}

// ListDevices returns a merged view of every device the ledger reports.
// Records that cannot be fetched are skipped with a warning.
func (s *DeviceService) ListDevices(ctx context.Context) (*DeviceList, error) {
	total, err := s.ledger.TotalDevices(ctx)
	if err != nil {
		return nil, err
	}
	out := &DeviceList{Devices: make([]domain.DeviceView, 0, capHint(total)), Total: total}
	s.enumerate(ctx, total, func(rec *domain.DeviceRecord) {
		view, err := s.buildView(ctx, rec)
		if err != nil {
			slog.Warn("device: skipping device in list", "device_id", rec.ID, "error", err)
			out.Skipped++
			return
		}
		out.Devices = append(out.Devices, *view)
	}, &out.Skipped)
	return out, nil
}

// DashboardStats aggregates status counts and verified impact over every
// device the ledger reports. Impact sums and the average score cover only
// devices in the terminal status.
func (s *DeviceService) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	total, err := s.ledger.TotalDevices(ctx)
	if err != nil {
		return nil, err
	}
	var (
		stats      domain.DashboardStats
		co2, toxic float64
		scoreSum   int
		terminal   int
	)
	s.enumerate(ctx, total, func(rec *domain.DeviceRecord) {
		stats.TotalDevices++
		switch rec.Status {
		case domain.StatusDisposed:
			stats.DevicesByStatus.Disposed++
		case domain.StatusCollected:
			stats.DevicesByStatus.Collected++
		case domain.StatusRecycled:
			stats.DevicesByStatus.Recycled++
		}
		if !rec.Status.IsTerminal() {
			return
		}
		terminal++
		verified, err := s.verifiedFor(ctx, rec)
		if err != nil {
			slog.Warn("device: verified impact unavailable, contributing zero", "device_id", rec.ID, "error", err)
			return
		}
		if verified == nil {
			return
		}
		co2 += verified.CO2SavedKg
		toxic += verified.ToxicWastePreventedKg
		scoreSum += verified.SustainabilityScore
	}, &stats.Skipped)

	stats.TotalCO2SavedKg = impact.Round2(co2)
	stats.TotalToxicWastePreventedKg = impact.Round2(toxic)
	if terminal > 0 {
		stats.AverageSustainabilityScore = int(math.Round(float64(scoreSum) / float64(terminal)))
	}
	return &stats, nil
}

// EstimateImpact projects impact for a hypothetical device. Nothing is persisted.
func (s *DeviceService) EstimateImpact(in EstimateInput) (*domain.ImpactSnapshot, error) {
	deviceType, err := validateDeviceType(in.DeviceType)
	if err != nil {
		return nil, err
	}
	if err := validateWeight(in.WeightKg); err != nil {
		return nil, err
	}
	if math.IsNaN(in.TransportDistanceKm) || math.IsInf(in.TransportDistanceKm, 0) || in.TransportDistanceKm < 0 {
		return nil, domain.NewValidationError("transportDistance", "must be zero or greater")
	}
	snap, err := impact.Project(0, deviceType, in.WeightKg, in.TransportDistanceKm)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// enumerate fetches records 1..total in order and calls fn for each one that
// the ledger returns. Fetch failures are logged and counted in skipped.
func (s *DeviceService) enumerate(ctx context.Context, total uint64, fn func(*domain.DeviceRecord), skipped *int) {
	for id := uint64(1); id <= total; id++ {
		if ctx.Err() != nil {
			slog.Warn("device: enumeration cancelled", "at", id, "total", total, "error", ctx.Err())
			*skipped += int(total - id + 1)
			s.metrics.skipped(ctx, int64(total-id+1))
			return
		}
		rec, err := s.ledger.GetDevice(ctx, id)
		if err != nil {
			slog.Warn("device: could not fetch device, skipping", "device_id", id, "error", err)
			*skipped++
			s.metrics.skipped(ctx, 1)
			continue
		}
		fn(rec)
	}
}

func (s *DeviceService) buildView(ctx context.Context, rec *domain.DeviceRecord) (*domain.DeviceView, error) {
	view := &domain.DeviceView{Device: *rec, Timeline: []domain.TimelineEntry{}}
	meta, err := s.store.GetMetadata(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		view.MetadataMissing = true
		return view, nil
	}
	view.Metadata = meta

	if view.ProjectedImpact, err = s.store.GetProjectedImpact(ctx, rec.ID); err != nil {
		return nil, err
	}
	if view.VerifiedImpact, err = s.store.GetVerifiedImpact(ctx, rec.ID); err != nil {
		return nil, err
	}
	if view.VerifiedImpact == nil && rec.Status.IsTerminal() {
		verified, err := s.verify(ctx, rec, meta)
		if err != nil {
			slog.Warn("device: could not repair verified impact", "device_id", rec.ID, "error", err)
		} else {
			view.VerifiedImpact = verified
		}
	}
	timeline, err := s.store.GetTimeline(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if timeline != nil {
		view.Timeline = timeline
	}
	return view, nil
}

// verifiedFor returns the stored Verified snapshot for a terminal device,
// computing it when missing. It returns nil, nil when the device has no
// metadata to compute from.
func (s *DeviceService) verifiedFor(ctx context.Context, rec *domain.DeviceRecord) (*domain.ImpactSnapshot, error) {
	verified, err := s.store.GetVerifiedImpact(ctx, rec.ID)
	if err != nil || verified != nil {
		return verified, err
	}
	meta, err := s.store.GetMetadata(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		slog.Warn("device: recycled on ledger without local metadata, contributing zero", "device_id", rec.ID)
		return nil, nil
	}
	return s.verify(ctx, rec, meta)
}

// verify computes and stores the Verified snapshot for rec.
func (s *DeviceService) verify(ctx context.Context, rec *domain.DeviceRecord, meta *domain.Metadata) (*domain.ImpactSnapshot, error) {
	snap, err := impact.Verify(rec.ID, rec.DeviceType, meta.WeightKg, meta.TransportDistanceKm)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveVerifiedImpact(ctx, &snap); err != nil {
		return nil, err
	}
	s.metrics.verified(ctx, rec.DeviceType)
	ev := s.newEvent(telemetrydomain.EventImpactVerified, rec.ID, string(rec.Status), "")
	ev.DeviceType = string(rec.DeviceType)
	ev.Impact = &snap
	telemetry.EmitAsync(s.events, ev)
	return &snap, nil
}

func (s *DeviceService) newEvent(t telemetrydomain.EventType, deviceID uint64, status, ref string) *telemetrydomain.LifecycleEvent {
	ev := telemetrydomain.NewEvent(t, EventSource, s.clock.Now())
	ev.DeviceID = deviceID
	ev.Status = status
	ev.ConfirmationRef = ref
	return ev
}

func validateDeviceType(s string) (domain.DeviceType, error) {
	if strings.TrimSpace(s) == "" {
		return "", domain.NewValidationError("deviceType", "is required")
	}
	t, err := domain.ParseDeviceType(s)
	if err != nil {
		return "", domain.NewValidationError("deviceType", "must be one of Laptop, Phone, TV")
	}
	return t, nil
}

func validateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return domain.NewValidationError("weight", "must be greater than 0")
	}
	return nil
}

func capHint(total uint64) int {
	const maxHint = 1024
	if total > maxHint {
		return maxHint
	}
	return int(total)
}
