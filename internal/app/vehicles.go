package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"myride/pkg/domain"
	"myride/pkg/store"
)

// CreateVehicleInput carries everything needed to register a vehicle.
type CreateVehicleInput struct {
	Type          domain.VehicleType
	Make          string
	Model         string
	Year          int
	Mileage       int
	PurchasePrice float64
	PurchaseYear  int
	Description   string
	Modified      bool
	ManualURL     string
	Photos        []Upload
}

// VehicleView is a vehicle together with short-lived photo URLs.
type VehicleView struct {
	domain.Vehicle
	PhotoURLs []string `json:"photoUrls,omitempty"`
}

func (in CreateVehicleInput) validate() error {
	switch in.Type {
	case domain.TypeCar, domain.TypeMotorcycle, domain.TypeTruck:
	default:
		return fmt.Errorf("%w: unknown vehicle type %q", ErrValidation, in.Type)
	}
	if in.Make == "" || in.Model == "" {
		return fmt.Errorf("%w: make and model required", ErrValidation)
	}
	currentYear := time.Now().Year()
	if in.Year < 1900 || in.Year > currentYear+1 {
		return fmt.Errorf("%w: year out of range", ErrValidation)
	}
	if in.Mileage < 0 {
		return fmt.Errorf("%w: mileage must be non-negative", ErrValidation)
	}
	if in.PurchasePrice < 0 {
		return fmt.Errorf("%w: purchase price must be non-negative", ErrValidation)
	}
	// Model years run ahead of the calendar, so a purchase one year before
	// the model year is legitimate.
	if in.PurchaseYear < in.Year-1 || in.PurchaseYear > currentYear {
		return fmt.Errorf("%w: purchase year out of range", ErrValidation)
	}
	if len(in.Photos) == 0 {
		return fmt.Errorf("%w: at least one photo required", ErrValidation)
	}
	return nil
}

// CreateVehicle uploads the photos, then writes the vehicle document. If the
// document write fails the uploaded photos are removed so neither store holds
// a half-created vehicle.
func (a *App) CreateVehicle(ctx context.Context, memberID string, in CreateVehicleInput) (domain.Vehicle, error) {
	if err := in.validate(); err != nil {
		return domain.Vehicle{}, err
	}

	id := fmt.Sprintf("%s-%s-%d", in.Type, memberID, time.Now().UnixNano())
	keys := make([]string, len(in.Photos))
	for i, p := range in.Photos {
		keys[i] = photoKey(id, uploadName(p.Filename))
	}
	if err := a.uploadAll(ctx, keys, in.Photos); err != nil {
		return domain.Vehicle{}, fmt.Errorf("upload photos: %w", err)
	}

	now := time.Now().UTC()
	v := domain.Vehicle{
		ID:             id,
		OwnerID:        memberID,
		Type:           in.Type,
		Make:           in.Make,
		Model:          in.Model,
		Year:           in.Year,
		Mileage:        in.Mileage,
		PurchasePrice:  in.PurchasePrice,
		PurchaseYear:   in.PurchaseYear,
		Description:    in.Description,
		Modified:       in.Modified,
		ManualURL:      in.ManualURL,
		PhotoKeys:      keys,
		ScheduleStatus: domain.ScheduleUninitialized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveVehicle(ctx, v); err != nil {
		if cerr := a.deleteAll(context.WithoutCancel(ctx), keys); cerr != nil {
			slog.ErrorContext(ctx, "photo cleanup after failed vehicle save",
				slog.String("vehicle_id", id), slog.Any("error", cerr))
		}
		return domain.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	return v, nil
}

// Vehicle returns one vehicle with presigned photo URLs. Listed vehicles are
// visible to any member; unlisted ones only to their owner.
func (a *App) Vehicle(ctx context.Context, memberID, vehicleID string) (VehicleView, error) {
	v, ok, err := a.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return VehicleView{}, fmt.Errorf("get vehicle: %w", err)
	}
	if !ok {
		return VehicleView{}, ErrVehicleNotFound
	}
	if v.OwnerID != memberID && !v.Listed {
		return VehicleView{}, ErrForbidden
	}
	return a.withPhotoURLs(ctx, v), nil
}

// Vehicles lists the member's own vehicles.
func (a *App) Vehicles(ctx context.Context, memberID string) ([]VehicleView, error) {
	vehicles, err := a.store.ListVehiclesByOwner(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	views := make([]VehicleView, len(vehicles))
	for i, v := range vehicles {
		views[i] = a.withPhotoURLs(ctx, v)
	}
	return views, nil
}

// Marketplace lists every vehicle currently offered for sale.
func (a *App) Marketplace(ctx context.Context) ([]VehicleView, error) {
	vehicles, err := a.store.ListListedVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list marketplace: %w", err)
	}
	views := make([]VehicleView, len(vehicles))
	for i, v := range vehicles {
		views[i] = a.withPhotoURLs(ctx, v)
	}
	return views, nil
}

// VehiclePatch holds the owner-editable fields; nil means unchanged.
type VehiclePatch struct {
	Mileage     *int
	Description *string
	Modified    *bool
	Listed      *bool
	AskingPrice *float64
	ManualURL   *string
}

// UpdateVehicle merge-writes the supplied fields.
func (a *App) UpdateVehicle(ctx context.Context, memberID, vehicleID string, patch VehiclePatch) (domain.Vehicle, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.Vehicle{}, err
	}

	fields := map[string]any{}
	if patch.Mileage != nil {
		if *patch.Mileage < v.Mileage {
			return domain.Vehicle{}, fmt.Errorf("%w: mileage cannot decrease", ErrValidation)
		}
		fields["mileage"] = *patch.Mileage
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Modified != nil {
		fields["modified"] = *patch.Modified
	}
	if patch.Listed != nil {
		fields["listed"] = *patch.Listed
	}
	if patch.AskingPrice != nil {
		if *patch.AskingPrice < 0 {
			return domain.Vehicle{}, fmt.Errorf("%w: asking price must be non-negative", ErrValidation)
		}
		fields["asking_price"] = *patch.AskingPrice
	}
	if patch.ManualURL != nil {
		fields["manual_url"] = *patch.ManualURL
	}
	if len(fields) == 0 {
		return v, nil
	}

	if err := a.store.MergeVehicle(ctx, vehicleID, fields); err != nil {
		return domain.Vehicle{}, fmt.Errorf("update vehicle: %w", err)
	}
	updated, ok, err := a.store.GetVehicle(ctx, vehicleID)
	if err != nil || !ok {
		return domain.Vehicle{}, fmt.Errorf("reload vehicle: %w", err)
	}
	return updated, nil
}

// DeleteVehicle removes every blob under the vehicle's prefix, then its
// receipts, then the vehicle document. A blob failure aborts before any
// record disappears.
func (a *App) DeleteVehicle(ctx context.Context, memberID, vehicleID string) error {
	if _, err := a.ownedVehicle(ctx, memberID, vehicleID); err != nil {
		return err
	}

	keys, err := a.objects.List(ctx, vehiclePrefix(vehicleID))
	if err != nil {
		return fmt.Errorf("list vehicle blobs: %w", err)
	}
	if err := a.deleteAll(ctx, keys); err != nil {
		return err
	}

	receipts, err := a.store.ListReceiptsByVehicle(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}
	for _, r := range receipts {
		if err := a.store.DeleteReceipt(ctx, r.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete receipt %s: %w", r.ID, err)
		}
	}

	if err := a.store.DeleteVehicle(ctx, vehicleID); err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}

const showcaseStyle = "studio lighting, dramatic angle, photorealistic, no text"

// GenerateShowcase produces an AI showcase image for the vehicle and stores
// its hosted URL on the document.
func (a *App) GenerateShowcase(ctx context.Context, memberID, vehicleID string) (string, error) {
	if a.images == nil {
		return "", fmt.Errorf("image generation not configured")
	}
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("A showcase photograph of a %d %s %s, %s", v.Year, v.Make, v.Model, showcaseStyle)
	callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	urls, err := a.images.GenerateImages(callCtx, prompt, 1, "1024x1024")
	if err != nil {
		return "", fmt.Errorf("generate showcase: %w", err)
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("generate showcase: empty result")
	}

	if err := a.store.MergeVehicle(ctx, vehicleID, map[string]any{"showcase_url": urls[0]}); err != nil {
		return "", fmt.Errorf("save showcase url: %w", err)
	}
	return urls[0], nil
}

// ownedVehicle loads a vehicle and verifies the caller owns it.
func (a *App) ownedVehicle(ctx context.Context, memberID, vehicleID string) (domain.Vehicle, error) {
	v, ok, err := a.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("get vehicle: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrVehicleNotFound
	}
	if v.OwnerID != memberID {
		return domain.Vehicle{}, ErrForbidden
	}
	return v, nil
}

// withPhotoURLs presigns the vehicle's photo keys. Presign failures are
// logged and skipped so one bad key does not hide the vehicle.
func (a *App) withPhotoURLs(ctx context.Context, v domain.Vehicle) VehicleView {
	view := VehicleView{Vehicle: v}
	for _, key := range v.PhotoKeys {
		url, err := a.objects.PresignGet(ctx, key, a.presignExpiry)
		if err != nil {
			slog.WarnContext(ctx, "presign photo", slog.String("key", key), slog.Any("error", err))
			continue
		}
		view.PhotoURLs = append(view.PhotoURLs, url)
	}
	return view
}
