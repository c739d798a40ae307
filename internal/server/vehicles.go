package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"myride/internal/app"
	"myride/pkg/domain"
)

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request, memberID string) {
	switch r.Method {
	case http.MethodGet:
		vehicles, err := s.app.Vehicles(r.Context(), memberID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, vehicles)
	case http.MethodPost:
		s.handleCreateVehicle(w, r, memberID)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request, memberID string) {
	photos, err := s.formUploads(r, "photos")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
		return
	}
	form := r.MultipartForm.Value
	in := app.CreateVehicleInput{
		Type:        domain.VehicleType(formValue(form, "type")),
		Make:        formValue(form, "make"),
		Model:       formValue(form, "model"),
		Description: formValue(form, "description"),
		ManualURL:   formValue(form, "manualUrl"),
		Photos:      photos,
	}
	in.Year, _ = strconv.Atoi(formValue(form, "year"))
	in.Mileage, _ = strconv.Atoi(formValue(form, "mileage"))
	in.PurchaseYear, _ = strconv.Atoi(formValue(form, "purchaseYear"))
	in.PurchasePrice, _ = strconv.ParseFloat(formValue(form, "purchasePrice"), 64)
	in.Modified, _ = strconv.ParseBool(formValue(form, "modified"))

	v, err := s.app.CreateVehicle(r.Context(), memberID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	vehicles, err := s.app.Marketplace(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// handleVehicleByID routes /api/vehicles/{id} and its subresources.
func (s *Server) handleVehicleByID(w http.ResponseWriter, r *http.Request, memberID string) {
	parts := pathParts(r, "/api/vehicles/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "not found", codeNotFound)
		return
	}
	vehicleID := parts[0]
	rest := parts[1:]

	switch {
	case len(rest) == 0:
		s.handleVehicle(w, r, memberID, vehicleID)
	case rest[0] == "valuation" && len(rest) == 1:
		s.handleValuation(w, r, memberID, vehicleID)
	case rest[0] == "valuation" && len(rest) == 2 && rest[1] == "ai":
		s.handleAIValuation(w, r, memberID, vehicleID)
	case rest[0] == "maintenance" && len(rest) == 1:
		s.handleMaintenance(w, r, memberID, vehicleID)
	case rest[0] == "maintenance" && len(rest) == 2 && rest[1] == "sync":
		s.handleMaintenanceSync(w, r, memberID, vehicleID)
	case rest[0] == "showcase" && len(rest) == 1:
		s.handleShowcase(w, r, memberID, vehicleID)
	case rest[0] == "receipts" && len(rest) == 1:
		s.handleReceipts(w, r, memberID, vehicleID)
	case rest[0] == "receipts" && len(rest) == 2 && rest[1] == "sums":
		s.handleReceiptSums(w, r, memberID, vehicleID)
	case rest[0] == "receipts" && len(rest) == 2:
		s.handleReceiptByID(w, r, memberID, vehicleID, rest[1])
	default:
		writeError(w, r, http.StatusNotFound, "not found", codeNotFound)
	}
}

type vehiclePatchRequest struct {
	Mileage     *int     `json:"mileage"`
	Description *string  `json:"description"`
	Modified    *bool    `json:"modified"`
	Listed      *bool    `json:"listed"`
	AskingPrice *float64 `json:"askingPrice"`
	ManualURL   *string  `json:"manualUrl"`
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	switch r.Method {
	case http.MethodGet:
		v, err := s.app.Vehicle(r.Context(), memberID, vehicleID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodPatch:
		var req vehiclePatchRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
			return
		}
		v, err := s.app.UpdateVehicle(r.Context(), memberID, vehicleID, app.VehiclePatch{
			Mileage:     req.Mileage,
			Description: req.Description,
			Modified:    req.Modified,
			Listed:      req.Listed,
			AskingPrice: req.AskingPrice,
			ManualURL:   req.ManualURL,
		})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodDelete:
		if err := s.app.DeleteVehicle(r.Context(), memberID, vehicleID); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	points, err := s.app.ValuationCurve(r.Context(), memberID, vehicleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleAIValuation(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	est, err := s.app.RecordAIEstimate(r.Context(), memberID, vehicleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

type maintenanceResponse struct {
	Table    domain.MaintenanceTable `json:"table"`
	Analysis domain.ScheduleAnalysis `json:"analysis"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	table, analysis, err := s.app.Schedule(r.Context(), memberID, vehicleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, maintenanceResponse{Table: table, Analysis: analysis})
}

type maintenanceSyncRequest struct {
	ManualURL string `json:"manualUrl"`
}

func (s *Server) handleMaintenanceSync(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req maintenanceSyncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
		return
	}
	table, err := s.app.SyncFromManual(r.Context(), memberID, vehicleID, req.ManualURL)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleShowcase(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	url, err := s.app.GenerateShowcase(r.Context(), memberID, vehicleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"showcaseUrl": url})
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	switch r.Method {
	case http.MethodGet:
		receipts, err := s.app.Receipts(r.Context(), memberID, vehicleID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receipts)
	case http.MethodPost:
		attachments, err := s.formUploads(r, "attachments")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
			return
		}
		form := r.MultipartForm.Value
		in := app.ReceiptInput{
			Title:       formValue(form, "title"),
			Category:    domain.ReceiptCategory(formValue(form, "category")),
			Mileage:     formValue(form, "mileage"),
			Attachments: attachments,
		}
		in.Price, _ = strconv.ParseFloat(formValue(form, "price"), 64)
		in.Date, err = parseDate(formValue(form, "date"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
			return
		}
		receipt, err := s.app.CreateReceipt(r.Context(), memberID, vehicleID, in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, receipt)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleReceiptSums(w http.ResponseWriter, r *http.Request, memberID, vehicleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	sums, err := s.app.SpendSums(r.Context(), memberID, vehicleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

type receiptPatchRequest struct {
	Title      *string  `json:"title"`
	Date       *string  `json:"date"`
	Category   *string  `json:"category"`
	Mileage    *string  `json:"mileage"`
	Price      *float64 `json:"price"`
	RemoveKeys []string `json:"removeKeys"`
}

func (s *Server) handleReceiptByID(w http.ResponseWriter, r *http.Request, memberID, vehicleID, receiptID string) {
	switch r.Method {
	case http.MethodPatch:
		patch, err := s.receiptPatch(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
			return
		}
		receipt, err := s.app.UpdateReceipt(r.Context(), memberID, vehicleID, receiptID, patch)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	case http.MethodDelete:
		if err := s.app.DeleteReceipt(r.Context(), memberID, vehicleID, receiptID); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w, r)
	}
}

// receiptPatch reads an edit either as JSON or, when new attachments ride
// along, as a multipart form.
func (s *Server) receiptPatch(r *http.Request) (app.ReceiptPatch, error) {
	var patch app.ReceiptPatch
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		attachments, err := s.formUploads(r, "attachments")
		if err != nil {
			return patch, err
		}
		patch.NewAttachments = attachments
		form := r.MultipartForm.Value
		if v := formValue(form, "title"); v != "" {
			patch.Title = &v
		}
		if v := formValue(form, "category"); v != "" {
			c := domain.ReceiptCategory(v)
			patch.Category = &c
		}
		if v := formValue(form, "mileage"); v != "" {
			patch.Mileage = &v
		}
		if v := formValue(form, "price"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				patch.Price = &p
			}
		}
		if v := formValue(form, "date"); v != "" {
			d, err := parseDate(v)
			if err != nil {
				return patch, err
			}
			patch.Date = &d
		}
		if v := formValue(form, "removeKeys"); v != "" {
			for _, key := range strings.Split(v, ",") {
				if key = strings.TrimSpace(key); key != "" {
					patch.RemoveKeys = append(patch.RemoveKeys, key)
				}
			}
		}
		return patch, nil
	}

	var req receiptPatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return patch, fmt.Errorf("invalid JSON body")
	}
	patch.Title = req.Title
	patch.Mileage = req.Mileage
	patch.Price = req.Price
	patch.RemoveKeys = req.RemoveKeys
	if req.Category != nil {
		c := domain.ReceiptCategory(*req.Category)
		patch.Category = &c
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	return patch, nil
}

func formValue(form map[string][]string, key string) string {
	if vals := form[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD or RFC 3339")
}
