package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "integrations.command.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "integrations.command.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "integrations.command.test.dispatch" }

type duplicateMessage struct{}

func (duplicateMessage) Type() string { return "integrations.command.test.duplicate" }

type queueMessage struct{}

func (queueMessage) Type() string { return "integrations.command.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("integrations.command.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterAndSubscribe_RejectsDuplicateMessageType(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	first := command.CommandFunc[duplicateMessage](func(context.Context, duplicateMessage) error { return nil })
	second := command.CommandFunc[duplicateMessage](func(context.Context, duplicateMessage) error { return nil })

	sub, err := RegisterAndSubscribe(adapter, first)
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	defer sub.Unsubscribe()
	if _, err := RegisterAndSubscribe(adapter, second); err == nil {
		t.Fatalf("expected duplicate message type to be rejected")
	}
	types := adapter.MessageTypes()
	if len(types) != 1 || types[0] != "integrations.command.test.duplicate" {
		t.Fatalf("unexpected registered types %v", types)
	}
}

func TestInitialize_IsIdempotent(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	calls := 0
	if err := adapter.AddResolver("count", func(any, command.CommandMeta, *command.Registry) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	cmd := command.CommandFunc[okMessage](func(context.Context, okMessage) error { return nil })
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected resolvers to run once, ran %d times", calls)
	}
	if err := adapter.AddResolver(" ", nil); err == nil {
		t.Fatalf("expected empty resolver key to fail")
	}
}

func TestDispatch_RejectsInvalidContract(t *testing.T) {
	if err := Dispatch(context.Background(), invalidMessage{}); err == nil {
		t.Fatalf("expected empty message type to be rejected before dispatch")
	}
	if _, err := Query[failingMessage, string](context.Background(), failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure before query")
	}
}
