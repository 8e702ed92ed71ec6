package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	searchcommand "github.com/goliatone/go-search/command"
	"github.com/goliatone/go-search/core"
	searchquery "github.com/goliatone/go-search/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// Register adds a commander or querier to the registry. go-command keys both
// by message type.
func (a *RegistryAdapter) Register(handler any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry so
// index writes can run asynchronously.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.Register(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry gocmd.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.Register(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions groups dispatcher subscriptions so they can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterSearchHandlers registers and subscribes both search queries and,
// when writer is set, both index commands.
func RegisterSearchHandlers(
	adapter *RegistryAdapter,
	searcher core.Searcher,
	writer core.IndexWriter,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if searcher == nil {
		return nil, fmt.Errorf("gocommand: searcher is required")
	}
	subs := Subscriptions{}
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	err := errors.Join(
		add(RegisterAndSubscribeQuery(adapter, searchquery.NewSearchByShortIDQuery(searcher), runnerOpts...)),
		add(RegisterAndSubscribeQuery(adapter, searchquery.NewSearchInGroupQuery(searcher), runnerOpts...)),
	)
	if err == nil && writer != nil {
		err = errors.Join(
			add(RegisterAndSubscribe(adapter, searchcommand.NewIndexShortIDCommand(writer), runnerOpts...)),
			add(RegisterAndSubscribe(adapter, searchcommand.NewIndexResourceCommand(writer), runnerOpts...)),
		)
	}
	if err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}
