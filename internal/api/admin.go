package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/submeterhq/submeter-ingest/internal/db"
	"github.com/submeterhq/submeter-ingest/internal/repository"
	"github.com/submeterhq/submeter-ingest/tools/timeparser"
	"go.uber.org/zap"
)

// AdminHandler serves the thin CRUD API over properties, units, tenants and
// meters. These endpoints are pass-throughs to the repository; the ingest
// pipeline is the only consumer with real logic.
type AdminHandler struct {
	repo   *repository.Repository
	logger *zap.Logger
}

type createPropertyRequest struct {
	Address      string  `json:"address"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	ZipCode      string  `json:"zip_code"`
	OwnerName    *string `json:"owner_name"`
	WaterUtility *string `json:"water_utility"`
	PowerUtility *string `json:"power_utility"`
	GasUtility   *string `json:"gas_utility"`
}

// CreateProperty creates a property.
func (h *AdminHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Address == "" || req.City == "" || req.State == "" || req.ZipCode == "" {
		writeError(w, http.StatusBadRequest, "address, city, state and zip_code are required", nil)
		return
	}

	property, err := h.repo.CreateProperty(r.Context(), &db.Property{
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		OwnerName:    req.OwnerName,
		WaterUtility: req.WaterUtility,
		PowerUtility: req.PowerUtility,
		GasUtility:   req.GasUtility,
	})
	if err != nil {
		h.storageError(w, "failed to create property", err)
		return
	}

	writeJSON(w, http.StatusCreated, property)
}

// ListProperties lists all properties.
func (h *AdminHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := h.repo.ListProperties(r.Context())
	if err != nil {
		h.storageError(w, "failed to list properties", err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

type createUnitRequest struct {
	PropertyID uuid.UUID `json:"property_id"`
	UnitNumber string    `json:"unit_number"`
}

// CreateUnit creates a unit under a property.
func (h *AdminHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req createUnitRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.PropertyID == uuid.Nil || req.UnitNumber == "" {
		writeError(w, http.StatusBadRequest, "property_id and unit_number are required", nil)
		return
	}

	unit, err := h.repo.CreateUnit(r.Context(), &db.Unit{
		PropertyID: req.PropertyID,
		UnitNumber: req.UnitNumber,
	})
	if err != nil {
		h.storageError(w, "failed to create unit", err)
		return
	}

	writeJSON(w, http.StatusCreated, unit)
}

// ListUnits lists the units of the property given by the property_id query
// parameter.
func (h *AdminHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	propertyID, err := uuid.Parse(r.URL.Query().Get("property_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid property_id query parameter is required", nil)
		return
	}

	units, err := h.repo.ListUnitsByProperty(r.Context(), propertyID)
	if err != nil {
		h.storageError(w, "failed to list units", err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

type createTenantRequest struct {
	UnitID        uuid.UUID `json:"unit_id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email"`
	Phone         *string   `json:"phone"`
	MoveInDate    string    `json:"move_in_date"`
	AccountNumber *string   `json:"account_number"`
}

// CreateTenant creates a tenant in a unit.
func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.UnitID == uuid.Nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "unit_id and name are required", nil)
		return
	}

	moveIn, err := time.Parse(timeparser.ReadingDateLayout, req.MoveInDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "move_in_date must be YYYY-MM-DD", nil)
		return
	}

	tenant, err := h.repo.CreateTenant(r.Context(), &db.Tenant{
		UnitID:        req.UnitID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		MoveInDate:    moveIn,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		h.storageError(w, "failed to create tenant", err)
		return
	}

	writeJSON(w, http.StatusCreated, tenant)
}

type moveOutRequest struct {
	MoveOutDate string `json:"move_out_date"`
}

// MoveOutTenant records a tenant's move-out date.
func (h *AdminHandler) MoveOutTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}

	var req moveOutRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	moveOut, err := time.Parse(timeparser.ReadingDateLayout, req.MoveOutDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "move_out_date must be YYYY-MM-DD", nil)
		return
	}

	if err := h.repo.MoveOutTenant(r.Context(), tenantID, moveOut); err != nil {
		h.storageError(w, "failed to move out tenant", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type createMeterRequest struct {
	UnitID           uuid.UUID `json:"unit_id"`
	MeterNumber      string    `json:"meter_number"`
	MeterType        string    `json:"meter_type"`
	DeviceType       *string   `json:"device_type"`
	DeviceIdentifier *string   `json:"device_identifier"`
}

// CreateMeter creates a meter on a unit. New meters are active.
func (h *AdminHandler) CreateMeter(w http.ResponseWriter, r *http.Request) {
	var req createMeterRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.UnitID == uuid.Nil || req.MeterNumber == "" {
		writeError(w, http.StatusBadRequest, "unit_id and meter_number are required", nil)
		return
	}
	switch req.MeterType {
	case "water", "power", "gas":
	default:
		writeError(w, http.StatusBadRequest, "meter_type must be water, power or gas", nil)
		return
	}

	meter, err := h.repo.CreateMeter(r.Context(), &db.Meter{
		UnitID:           req.UnitID,
		MeterNumber:      req.MeterNumber,
		MeterType:        req.MeterType,
		DeviceType:       req.DeviceType,
		DeviceIdentifier: req.DeviceIdentifier,
		IsActive:         true,
	})
	if err != nil {
		h.storageError(w, "failed to create meter", err)
		return
	}

	writeJSON(w, http.StatusCreated, meter)
}

// ListMeterReadings lists stored readings for a meter number, newest first.
func (h *AdminHandler) ListMeterReadings(w http.ResponseWriter, r *http.Request) {
	meterNumber := r.PathValue("meterNumber")

	meter, err := h.repo.FindActiveMeterByNumber(r.Context(), meterNumber)
	if err != nil {
		h.storageError(w, "failed to look up meter", err)
		return
	}
	if meter == nil {
		writeError(w, http.StatusNotFound, "Meter not found: "+meterNumber, nil)
		return
	}

	readings, err := h.repo.ListReadingsByMeter(r.Context(), meter.ID, 100)
	if err != nil {
		h.storageError(w, "failed to list readings", err)
		return
	}

	out := make([]readingResponse, 0, len(readings))
	for _, reading := range readings {
		out = append(out, readingResponse{
			ID:           reading.ID,
			MeterID:      reading.MeterID,
			ReadingValue: reading.ReadingValue,
			ReadingDate:  reading.ReadingDate,
			RawData:      json.RawMessage(reading.RawData),
			Source:       reading.Source,
			CreatedAt:    reading.CreatedAt,
			UpdatedAt:    reading.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type readingResponse struct {
	ID           uuid.UUID       `json:"id"`
	MeterID      uuid.UUID       `json:"meter_id"`
	ReadingValue float64         `json:"reading_value"`
	ReadingDate  string          `json:"reading_date"`
	RawData      json.RawMessage `json:"raw_data"`
	Source       string          `json:"source"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (h *AdminHandler) storageError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, err.Error())
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}
