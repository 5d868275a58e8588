package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-integrations/core"
)

func TestMessageValidationNamesTheField(t *testing.T) {
	negative := -1
	cases := []struct {
		name  string
		msg   interface{ Validate() error }
		field string
	}{
		{"register without name", RegisterIntegrationMessage{}, "name"},
		{"register without adapter", RegisterIntegrationMessage{Name: "slack"}, "adapter"},
		{"deliver without event", DeliverWebhookMessage{Name: "zapier"}, "event"},
		{"progress without id", UpdateSyncProgressMessage{}, "id"},
		{"negative progress", UpdateSyncProgressMessage{ID: "sync_1", Progress: core.SyncProgress{RecordsProcessed: &negative}}, "records_processed"},
		{"complete as running", CompleteSyncMessage{ID: "sync_1", Status: core.SyncStatusRunning}, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rich *goerrors.Error
			if err := tc.msg.Validate(); !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorBadInput || rich.Code != http.StatusBadRequest {
				t.Fatalf("unexpected envelope %+v", rich)
			}
			fields := rich.AllValidationErrors()
			if len(fields) != 1 || fields[0].Field != tc.field {
				t.Fatalf("expected %s field error, got %+v", tc.field, fields)
			}
		})
	}
}

func TestStartSyncMessage_ValidateWrapsRequestError(t *testing.T) {
	err := (StartSyncMessage{Request: core.StartSyncRequest{Integration: "zapier", Kind: "sideways"}}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 code, got %d", rich.Code)
	}
}

func TestCommandsWithoutDependenciesReportInternalErrors(t *testing.T) {
	ctx := context.Background()
	errs := map[string]error{
		"register": (*RegisterIntegrationCommand)(nil).Execute(ctx, RegisterIntegrationMessage{}),
		"deliver":  NewDeliverWebhookCommand(nil).Execute(ctx, DeliverWebhookMessage{Name: "zapier", Event: "ping"}),
		"start":    NewStartSyncCommand(nil).Execute(ctx, StartSyncMessage{}),
		"complete": NewCompleteSyncCommand(nil).Execute(ctx, CompleteSyncMessage{}),
	}
	for name, err := range errs {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorInternal {
			t.Fatalf("%s: unexpected envelope %+v", name, rich)
		}
	}
}
