package app

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"myride/pkg/domain"
)

func receiptInput(title string, category domain.ReceiptCategory, price float64, attachments ...Upload) ReceiptInput {
	return ReceiptInput{
		Title:       title,
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Category:    category,
		Mileage:     "43000",
		Price:       price,
		Attachments: attachments,
	}
}

func TestCreateReceiptValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	cases := []struct {
		name string
		in   ReceiptInput
	}{
		{"empty title", receiptInput("", domain.CategoryRepair, 10)},
		{"bad category", receiptInput("Fix", "Other", 10)},
		{"negative price", receiptInput("Fix", domain.CategoryRepair, -1)},
		{"bad mileage", ReceiptInput{Title: "Fix", Date: time.Now(), Category: domain.CategoryRepair, Mileage: "lots", Price: 10}},
		{"negative mileage", ReceiptInput{Title: "Fix", Date: time.Now(), Category: domain.CategoryRepair, Mileage: "-5", Price: 10}},
	}
	for _, tc := range cases {
		if _, err := f.app.CreateReceipt(ctx, m.ID, v.ID, tc.in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: got %v, want validation error", tc.name, err)
		}
	}
	if f.objects.Len() != 1 { // only the vehicle photo
		t.Fatalf("blobs written despite validation failures: %d", f.objects.Len())
	}
}

func TestCreateReceiptUploadsAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	r, err := f.app.CreateReceipt(ctx, m.ID, v.ID, receiptInput("Brake pads", domain.CategoryRepair, 220,
		Upload{Filename: "invoice.pdf", Size: 3, Reader: strings.NewReader("pdf")},
		Upload{Filename: "photo.jpg", Size: 3, Reader: strings.NewReader("jpg")},
	))
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if len(r.AttachmentKeys) != 2 {
		t.Fatalf("attachment keys = %v", r.AttachmentKeys)
	}
	for _, key := range r.AttachmentKeys {
		if !strings.HasPrefix(key, "listing/"+v.ID+"/docs/receipts/"+r.ID+"/") {
			t.Fatalf("attachment key %q outside receipt prefix", key)
		}
		if _, err := f.objects.Get(ctx, key); err != nil {
			t.Fatalf("attachment %q missing: %v", key, err)
		}
	}
}

func TestCreateReceiptDuplicateFilenamesKeepBothFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	r, err := f.app.CreateReceipt(ctx, m.ID, v.ID, receiptInput("Brake pads", domain.CategoryRepair, 220,
		Upload{Filename: "invoice.pdf", Size: 5, Reader: strings.NewReader("first")},
		Upload{Filename: "invoice.pdf", Size: 6, Reader: strings.NewReader("second")},
	))
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if len(r.AttachmentKeys) != 2 || r.AttachmentKeys[0] == r.AttachmentKeys[1] {
		t.Fatalf("attachment keys not distinct: %v", r.AttachmentKeys)
	}
	contents := map[string]bool{}
	for _, key := range r.AttachmentKeys {
		rc, err := f.objects.Get(ctx, key)
		if err != nil {
			t.Fatalf("attachment %q missing: %v", key, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read attachment %q: %v", key, err)
		}
		contents[string(body)] = true
	}
	if !contents["first"] || !contents["second"] {
		t.Fatalf("attachment contents = %v, want both files kept", contents)
	}
}

func TestUpdateReceiptInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	r, err := f.app.CreateReceipt(ctx, m.ID, v.ID, receiptInput("Brake pads", domain.CategoryRepair, 220,
		Upload{Filename: "invoice.pdf", Size: 3, Reader: strings.NewReader("pdf")},
	))
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	updated, err := f.app.UpdateReceipt(ctx, m.ID, v.ID, r.ID, ReceiptPatch{
		Title:      strPtr("Brake pads and rotors"),
		Price:      floatPtr(340),
		RemoveKeys: r.AttachmentKeys,
		NewAttachments: []Upload{
			{Filename: "new-invoice.pdf", Size: 3, Reader: strings.NewReader("pdf")},
		},
	})
	if err != nil {
		t.Fatalf("update receipt: %v", err)
	}
	if updated.ID != r.ID {
		t.Fatalf("update changed identity: %q -> %q", r.ID, updated.ID)
	}
	if updated.Title != "Brake pads and rotors" || updated.Price != 340 {
		t.Fatalf("fields not updated: %+v", updated)
	}
	if len(updated.AttachmentKeys) != 1 || !strings.HasSuffix(updated.AttachmentKeys[0], "new-invoice.pdf") {
		t.Fatalf("attachment set = %v", updated.AttachmentKeys)
	}
	if _, err := f.objects.Get(ctx, r.AttachmentKeys[0]); err == nil {
		t.Fatalf("removed attachment still in blob store")
	}
}

func TestDeleteReceiptRemovesAttachmentsFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	r, err := f.app.CreateReceipt(ctx, m.ID, v.ID, receiptInput("Brake pads", domain.CategoryRepair, 220,
		Upload{Filename: "a.pdf", Size: 3, Reader: strings.NewReader("pdf")},
		Upload{Filename: "b.pdf", Size: 3, Reader: strings.NewReader("pdf")},
		Upload{Filename: "c.pdf", Size: 3, Reader: strings.NewReader("pdf")},
	))
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	before := f.objects.Len()

	if err := f.app.DeleteReceipt(ctx, m.ID, v.ID, r.ID); err != nil {
		t.Fatalf("delete receipt: %v", err)
	}
	if got := f.objects.Len(); got != before-3 {
		t.Fatalf("blob count = %d, want %d", got, before-3)
	}
	if _, ok, _ := f.store.GetReceipt(ctx, r.ID); ok {
		t.Fatalf("receipt record remains after delete")
	}
}

func TestReceiptOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.member(t, "owner@example.com")
	other := f.member(t, "other@example.com")
	v := f.vehicle(t, owner.ID)

	if _, err := f.app.CreateReceipt(ctx, other.ID, v.ID, receiptInput("Fix", domain.CategoryRepair, 10)); err != ErrForbidden {
		t.Fatalf("stranger created receipt: %v", err)
	}
	if _, err := f.app.Receipts(ctx, other.ID, v.ID); err != ErrForbidden {
		t.Fatalf("stranger listed receipts: %v", err)
	}
}

func TestSumReceipts(t *testing.T) {
	receipts := []domain.Receipt{
		{Category: domain.CategoryRepair, Price: 100},
		{Category: domain.CategoryRepair, Price: 50},
		{Category: domain.CategoryScheduledMaint, Price: 80},
		{Category: domain.CategoryPerformanceMods, Price: math.NaN()},
	}
	sum := SumReceipts(24000, receipts)
	if sum.WithoutPurchasePrice != 230 {
		t.Fatalf("without purchase = %v, want 230", sum.WithoutPurchasePrice)
	}
	if sum.TotalSpent != 24230 {
		t.Fatalf("total = %v, want 24230", sum.TotalSpent)
	}
	if sum.ByCategory[domain.CategoryRepair] != 150 {
		t.Fatalf("repair = %v, want 150", sum.ByCategory[domain.CategoryRepair])
	}
	if sum.ByCategory[domain.CategoryPerformanceMods] != 0 {
		t.Fatalf("NaN price counted: %v", sum.ByCategory[domain.CategoryPerformanceMods])
	}
	if sum.ByCategory[domain.CategoryCosmeticMods] != 0 {
		t.Fatalf("missing category absent from map")
	}
}

func TestSpendSumsEmptyVehicle(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "a@example.com")
	v := f.vehicle(t, m.ID)

	sum, err := f.app.SpendSums(context.Background(), m.ID, v.ID)
	if err != nil {
		t.Fatalf("spend sums: %v", err)
	}
	if sum.TotalSpent != v.PurchasePrice || sum.WithoutPurchasePrice != 0 {
		t.Fatalf("empty sums = %+v", sum)
	}
}
