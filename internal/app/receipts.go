package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"myride/pkg/domain"
)

// ReceiptInput carries the user-entered fields of a receipt.
type ReceiptInput struct {
	Title       string
	Date        time.Time
	Category    domain.ReceiptCategory
	Mileage     string
	Price       float64
	Attachments []Upload
}

func (in ReceiptInput) validate(max int) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrValidation)
	}
	switch in.Category {
	case domain.CategoryRepair, domain.CategoryScheduledMaint,
		domain.CategoryCosmeticMods, domain.CategoryPerformanceMods:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrValidation, in.Category)
	}
	if in.Mileage != domain.MileageUnknown {
		n, err := strconv.Atoi(in.Mileage)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: mileage must be a non-negative number or %q", ErrValidation, domain.MileageUnknown)
		}
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return fmt.Errorf("%w: price must be non-negative", ErrValidation)
	}
	if len(in.Attachments) > max {
		return fmt.Errorf("%w: at most %d attachments", ErrValidation, max)
	}
	return nil
}

// CreateReceipt validates, uploads the attachments, then writes the record.
// A failed record write removes the uploaded attachments. A saved receipt
// advances the vehicle's maintenance schedule; a schedule failure is logged
// but never undoes the receipt.
func (a *App) CreateReceipt(ctx context.Context, memberID, vehicleID string, in ReceiptInput) (domain.Receipt, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := in.validate(a.maxAttachments); err != nil {
		return domain.Receipt{}, err
	}

	id := fmt.Sprintf("receipt-%d", time.Now().UnixNano())
	keys := make([]string, len(in.Attachments))
	for i, up := range in.Attachments {
		keys[i] = receiptAttachmentKey(vehicleID, id, uploadName(up.Filename))
	}
	if err := a.uploadAll(ctx, keys, in.Attachments); err != nil {
		return domain.Receipt{}, fmt.Errorf("upload attachments: %w", err)
	}

	now := time.Now().UTC()
	r := domain.Receipt{
		ID:             id,
		VehicleID:      vehicleID,
		Title:          in.Title,
		Date:           in.Date,
		Category:       in.Category,
		Mileage:        in.Mileage,
		Price:          in.Price,
		AttachmentKeys: keys,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveReceipt(ctx, r); err != nil {
		if cerr := a.deleteAll(context.WithoutCancel(ctx), keys); cerr != nil {
			slog.ErrorContext(ctx, "attachment cleanup after failed receipt save",
				slog.String("receipt_id", id), slog.Any("error", cerr))
		}
		return domain.Receipt{}, fmt.Errorf("save receipt: %w", err)
	}

	if err := a.applyReceiptToSchedule(ctx, v, r); err != nil {
		slog.WarnContext(ctx, "schedule not advanced for receipt",
			slog.String("receipt_id", id), slog.Any("error", err))
	}
	return r, nil
}

// Receipts lists a vehicle's receipts, newest service date first.
func (a *App) Receipts(ctx context.Context, memberID, vehicleID string) ([]domain.Receipt, error) {
	if _, err := a.ownedVehicle(ctx, memberID, vehicleID); err != nil {
		return nil, err
	}
	receipts, err := a.store.ListReceiptsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// ReceiptPatch holds the editable receipt fields; nil means unchanged.
type ReceiptPatch struct {
	Title          *string
	Date           *time.Time
	Category       *domain.ReceiptCategory
	Mileage        *string
	Price          *float64
	RemoveKeys     []string
	NewAttachments []Upload
}

// UpdateReceipt edits a receipt in place. New attachments are uploaded
// before the record write; attachments dropped from the set are deleted from
// the blob store after it succeeds.
func (a *App) UpdateReceipt(ctx context.Context, memberID, vehicleID, receiptID string, patch ReceiptPatch) (domain.Receipt, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	r, err := a.vehicleReceipt(ctx, vehicleID, receiptID)
	if err != nil {
		return domain.Receipt{}, err
	}

	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Date != nil {
		r.Date = *patch.Date
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.Mileage != nil {
		r.Mileage = *patch.Mileage
	}
	if patch.Price != nil {
		r.Price = *patch.Price
	}

	remove := map[string]bool{}
	for _, key := range patch.RemoveKeys {
		remove[key] = true
	}
	kept := r.AttachmentKeys[:0:0]
	var dropped []string
	for _, key := range r.AttachmentKeys {
		if remove[key] {
			dropped = append(dropped, key)
		} else {
			kept = append(kept, key)
		}
	}

	newKeys := make([]string, len(patch.NewAttachments))
	for i, up := range patch.NewAttachments {
		newKeys[i] = receiptAttachmentKey(vehicleID, receiptID, uploadName(up.Filename))
	}
	r.AttachmentKeys = append(kept, newKeys...)
	r.UpdatedAt = time.Now().UTC()

	if err := (ReceiptInput{
		Title:    r.Title,
		Date:     r.Date,
		Category: r.Category,
		Mileage:  r.Mileage,
		Price:    r.Price,
	}).validate(a.maxAttachments); err != nil {
		return domain.Receipt{}, err
	}
	if len(r.AttachmentKeys) > a.maxAttachments {
		return domain.Receipt{}, fmt.Errorf("%w: at most %d attachments", ErrValidation, a.maxAttachments)
	}

	if len(newKeys) > 0 {
		if err := a.uploadAll(ctx, newKeys, patch.NewAttachments); err != nil {
			return domain.Receipt{}, fmt.Errorf("upload attachments: %w", err)
		}
	}
	if err := a.store.SaveReceipt(ctx, r); err != nil {
		if cerr := a.deleteAll(context.WithoutCancel(ctx), newKeys); cerr != nil {
			slog.ErrorContext(ctx, "attachment cleanup after failed receipt update",
				slog.String("receipt_id", receiptID), slog.Any("error", cerr))
		}
		return domain.Receipt{}, fmt.Errorf("save receipt: %w", err)
	}
	for _, key := range dropped {
		if err := a.objects.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "removed attachment not deleted",
				slog.String("key", key), slog.Any("error", err))
		}
	}

	if err := a.applyReceiptToSchedule(ctx, v, r); err != nil {
		slog.WarnContext(ctx, "schedule not advanced for receipt",
			slog.String("receipt_id", receiptID), slog.Any("error", err))
	}
	return r, nil
}

// DeleteReceipt removes every attachment blob, then the record. A blob
// failure aborts before the record delete so nothing is orphaned invisibly.
func (a *App) DeleteReceipt(ctx context.Context, memberID, vehicleID, receiptID string) error {
	if _, err := a.ownedVehicle(ctx, memberID, vehicleID); err != nil {
		return err
	}
	r, err := a.vehicleReceipt(ctx, vehicleID, receiptID)
	if err != nil {
		return err
	}
	if err := a.deleteAll(ctx, r.AttachmentKeys); err != nil {
		return err
	}
	if err := a.store.DeleteReceipt(ctx, receiptID); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}

// SpendSums computes the vehicle's spending summary from its receipts.
func (a *App) SpendSums(ctx context.Context, memberID, vehicleID string) (domain.SpendSummary, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.SpendSummary{}, err
	}
	receipts, err := a.store.ListReceiptsByVehicle(ctx, vehicleID)
	if err != nil {
		return domain.SpendSummary{}, fmt.Errorf("list receipts: %w", err)
	}
	return SumReceipts(v.PurchasePrice, receipts), nil
}

// SumReceipts derives the spend summary. A missing or non-finite price
// counts as zero.
func SumReceipts(purchasePrice float64, receipts []domain.Receipt) domain.SpendSummary {
	sum := domain.SpendSummary{
		ByCategory: map[domain.ReceiptCategory]float64{
			domain.CategoryRepair:          0,
			domain.CategoryScheduledMaint:  0,
			domain.CategoryCosmeticMods:    0,
			domain.CategoryPerformanceMods: 0,
		},
	}
	for _, r := range receipts {
		price := r.Price
		if math.IsNaN(price) || math.IsInf(price, 0) {
			price = 0
		}
		sum.WithoutPurchasePrice += price
		sum.ByCategory[r.Category] += price
	}
	sum.TotalSpent = purchasePrice + sum.WithoutPurchasePrice
	return sum
}

func (a *App) vehicleReceipt(ctx context.Context, vehicleID, receiptID string) (domain.Receipt, error) {
	r, ok, err := a.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("get receipt: %w", err)
	}
	if !ok || r.VehicleID != vehicleID {
		return domain.Receipt{}, ErrReceiptNotFound
	}
	return r, nil
}
