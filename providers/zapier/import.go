package zapier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// importRecords translates a batch of records under a tracked sync
// operation. Invalid records are reported, not fatal; the operation fails
// only when no record could be translated.
func (a *Adapter) importRecords(ctx context.Context, req ActionRequest) (core.WebhookResult, error) {
	entity := strings.ToLower(strings.TrimSpace(req.EntityType))
	if entity == "" {
		entity = strings.ToLower(stringField(req.Data, "entity_type"))
	}
	if entity == "" {
		entity = "contact"
	}
	if _, ok := entities[entity]; !ok {
		return rejected(ActionImportRecords, []string{fmt.Sprintf("unknown entity %q", entity)}), nil
	}
	if len(req.Records) == 0 {
		return rejected(ActionImportRecords, []string{"records are required"}), nil
	}
	if a.cfg.Syncs == nil {
		return core.WebhookResult{}, core.InternalError("zapier: sync lifecycle is not configured", nil)
	}

	total := len(req.Records)
	op, err := a.cfg.Syncs.StartSync(ctx, core.StartSyncRequest{
		Integration:  Name,
		Kind:         core.SyncKindImport,
		EntityType:   entity,
		RecordsTotal: core.IntPtr(total),
		Metadata:     map[string]any{"source": "zapier"},
	})
	if err != nil {
		return core.WebhookResult{}, err
	}

	translated := make([]map[string]any, 0, total)
	problems := []string{}
	processed := 0
	for start := 0; start < total; start += a.cfg.ImportBatchSize {
		if err := ctx.Err(); err != nil {
			_, _ = a.cfg.Syncs.CompleteSyncOperation(context.WithoutCancel(ctx), op.ID, core.SyncStatusFailed, err.Error())
			return core.WebhookResult{}, err
		}
		end := min(start+a.cfg.ImportBatchSize, total)
		for index, record := range req.Records[start:end] {
			translation, recordProblems := TranslateEntity(entity, "create", record)
			if len(recordProblems) > 0 {
				problems = append(problems, fmt.Sprintf("record %d: %s", start+index, strings.Join(recordProblems, ", ")))
				continue
			}
			translated = append(translated, translation.Fields)
		}
		processed = end
		a.cfg.Syncs.UpdateSyncProgress(ctx, op.ID, core.SyncProgress{
			RecordsProcessed: core.IntPtr(processed),
			Metadata:         map[string]any{"records_failed": len(problems)},
		})
	}

	status := core.SyncStatusCompleted
	errMsg := ""
	if len(translated) == 0 {
		status = core.SyncStatusFailed
		errMsg = "no records could be imported"
	} else if len(problems) > 0 {
		errMsg = fmt.Sprintf("%d record(s) rejected", len(problems))
	}
	final, err := a.cfg.Syncs.CompleteSyncOperation(ctx, op.ID, status, errMsg)
	if err != nil {
		return core.WebhookResult{}, err
	}

	data := map[string]any{
		"action":            string(ActionImportRecords),
		"sync_operation_id": final.ID,
		"status":            string(final.Status),
		"entity_type":       entity,
		"records_processed": final.RecordsProcessed,
		"records_imported":  len(translated),
		"records":           translated,
	}
	if len(problems) > 0 {
		data["errors"] = problems
	}
	return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
}
