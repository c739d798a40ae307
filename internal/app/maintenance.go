package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"myride/pkg/ai"
	"myride/pkg/domain"
)

const maintenanceSystemPrompt = `You are an automotive service advisor. From the owner's manual text the
user provides, extract the manufacturer's maintenance schedule. Respond with
a JSON array and nothing else. Each element has the form
{"name": "<task>", "frequency": "<interval>"} where frequency is either a
mileage interval as a plain number string (for example "5000") or a year
interval with a trailing Y (for example "2Y"). Skip tasks whose interval the
manual does not state.`

type aiScheduleTask struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
}

// SyncFromManual fetches the vehicle's owner manual, asks the language model
// for the maintenance schedule, and persists the resulting table as the
// vehicle's schedule blob. On an unparsable model response the previous
// table (if any) is left untouched and ErrScheduleStale is returned.
func (a *App) SyncFromManual(ctx context.Context, memberID, vehicleID, manualURL string) (domain.MaintenanceTable, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.MaintenanceTable{}, err
	}
	if manualURL == "" {
		manualURL = v.ManualURL
	}
	if manualURL == "" {
		return domain.MaintenanceTable{}, fmt.Errorf("%w: manual url required", ErrValidation)
	}

	text, err := a.fetchManualText(ctx, manualURL)
	if err != nil {
		return domain.MaintenanceTable{}, fmt.Errorf("fetch manual: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	completion, err := a.text.GenerateText(callCtx, maintenanceSystemPrompt, text)
	if err != nil {
		return domain.MaintenanceTable{}, fmt.Errorf("schedule completion: %w", err)
	}

	var extracted []aiScheduleTask
	if err := ai.DecodeJSON(completion, &extracted); err != nil {
		slog.WarnContext(ctx, "maintenance sync produced unparsable schedule",
			slog.String("vehicle_id", vehicleID))
		return domain.MaintenanceTable{}, fmt.Errorf("%w: %v", ErrScheduleStale, err)
	}
	if len(extracted) == 0 {
		return domain.MaintenanceTable{}, fmt.Errorf("%w: empty schedule", ErrScheduleStale)
	}

	now := time.Now().UTC()
	table := domain.MaintenanceTable{
		VehicleID: vehicleID,
		Status:    domain.ScheduleSynced,
		SyncedAt:  now,
		UpdatedAt: now,
	}
	for _, t := range extracted {
		name := strings.TrimSpace(t.Name)
		freq := strings.TrimSpace(t.Frequency)
		if name == "" || freq == "" {
			continue
		}
		if _, err := frequencyMiles(freq); err != nil {
			continue
		}
		table.Tasks = append(table.Tasks, domain.ScheduleTask{Name: name, Frequency: freq})
	}
	if len(table.Tasks) == 0 {
		return domain.MaintenanceTable{}, fmt.Errorf("%w: no usable tasks", ErrScheduleStale)
	}

	if err := a.saveTable(ctx, table); err != nil {
		return domain.MaintenanceTable{}, err
	}
	fields := map[string]any{"schedule_status": string(domain.ScheduleSynced)}
	if manualURL != v.ManualURL {
		fields["manual_url"] = manualURL
	}
	if err := a.store.MergeVehicle(ctx, vehicleID, fields); err != nil {
		return domain.MaintenanceTable{}, fmt.Errorf("mark schedule synced: %w", err)
	}
	return table, nil
}

// Schedule returns the stored maintenance table together with its derived
// analysis for the vehicle's current mileage.
func (a *App) Schedule(ctx context.Context, memberID, vehicleID string) (domain.MaintenanceTable, domain.ScheduleAnalysis, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.MaintenanceTable{}, domain.ScheduleAnalysis{}, err
	}
	if v.ScheduleStatus != domain.ScheduleSynced {
		return domain.MaintenanceTable{}, domain.ScheduleAnalysis{}, ErrScheduleUninitialized
	}
	table, err := a.loadTable(ctx, vehicleID)
	if err != nil {
		return domain.MaintenanceTable{}, domain.ScheduleAnalysis{}, err
	}
	return table, Analyze(table, v.Mileage), nil
}

// applyReceiptToSchedule advances the maintenance table after a receipt is
// saved. Tasks whose name appears in the receipt title (case-insensitive)
// record the service mileage and their next due point. Called on the
// receipt-save path; a vehicle without a synced schedule is a no-op.
func (a *App) applyReceiptToSchedule(ctx context.Context, v domain.Vehicle, r domain.Receipt) error {
	if v.ScheduleStatus != domain.ScheduleSynced {
		return nil
	}
	table, err := a.loadTable(ctx, v.ID)
	if err != nil {
		return err
	}

	mileage := v.Mileage
	if r.Mileage != domain.MileageUnknown {
		if n, err := strconv.Atoi(r.Mileage); err == nil {
			mileage = n
		}
	}

	title := strings.ToLower(r.Title)
	changed := false
	for i := range table.Tasks {
		task := &table.Tasks[i]
		if !strings.Contains(title, strings.ToLower(task.Name)) {
			continue
		}
		miles, err := frequencyMiles(task.Frequency)
		if err != nil {
			continue
		}
		done := mileage
		next := done + miles
		task.LastTimeDone = &done
		task.NextTimeToDo = &next
		changed = true
	}
	if !changed {
		return nil
	}

	table.UpdatedAt = time.Now().UTC()
	return a.saveTable(ctx, table)
}

// Analyze derives the three-part schedule summary: the most urgent task is
// the one with the smallest next-due mileage at or past the current reading,
// no-history lists tasks never recorded, and coverage is the tracked share.
func Analyze(table domain.MaintenanceTable, currentMileage int) domain.ScheduleAnalysis {
	out := domain.ScheduleAnalysis{TotalTasks: len(table.Tasks)}
	for i := range table.Tasks {
		task := table.Tasks[i]
		if task.NextTimeToDo == nil {
			out.NoHistory = append(out.NoHistory, task.Name)
			continue
		}
		out.TrackedTasks++
		if *task.NextTimeToDo < currentMileage {
			continue
		}
		if out.MostUrgent == nil || *task.NextTimeToDo < *out.MostUrgent.NextTimeToDo {
			t := task
			out.MostUrgent = &t
		}
	}
	if out.TotalTasks > 0 {
		out.CoveragePct = 100 * float64(out.TrackedTasks) / float64(out.TotalTasks)
	}
	return out
}

// frequencyMiles converts a frequency string into a mileage interval.
// Plain numbers are miles; a trailing Y marks years, converted at the
// assumed annual mileage.
func frequencyMiles(freq string) (int, error) {
	freq = strings.TrimSpace(freq)
	if freq == "" {
		return 0, fmt.Errorf("empty frequency")
	}
	if y, ok := strings.CutSuffix(strings.ToUpper(freq), "Y"); ok {
		years, err := strconv.Atoi(strings.TrimSpace(y))
		if err != nil || years <= 0 {
			return 0, fmt.Errorf("bad year frequency %q", freq)
		}
		return years * assumedAnnualMiles, nil
	}
	miles, err := strconv.Atoi(freq)
	if err != nil || miles <= 0 {
		return 0, fmt.Errorf("bad mileage frequency %q", freq)
	}
	return miles, nil
}

func (a *App) loadTable(ctx context.Context, vehicleID string) (domain.MaintenanceTable, error) {
	rc, err := a.objects.Get(ctx, maintenanceTableKey(vehicleID))
	if err != nil {
		return domain.MaintenanceTable{}, fmt.Errorf("load schedule: %w", err)
	}
	defer rc.Close()
	var table domain.MaintenanceTable
	if err := json.NewDecoder(rc).Decode(&table); err != nil {
		return domain.MaintenanceTable{}, fmt.Errorf("decode schedule: %w", err)
	}
	return table, nil
}

func (a *App) saveTable(ctx context.Context, table domain.MaintenanceTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	key := maintenanceTableKey(table.VehicleID)
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}
