package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/gosats/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosats/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/gosats/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosats/internal/wallet/engine"
	"github.com/shandysiswandi/gosats/internal/wallet/flow"
	"github.com/shandysiswandi/gosats/internal/wallet/gateway"
	"github.com/shandysiswandi/gosats/internal/wallet/inbound"
	"github.com/shandysiswandi/gosats/internal/wallet/state"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context

	// Engine overrides the configured engine; used by tests to wire a
	// fake without an lnd node.
	Engine engine.Engine
}

// New wires the wallet module: persistence gateway, ledger store and
// snapshot writer, engine adapter, flow controllers, balance watcher,
// and the HTTP endpoints. The returned closer drains the snapshot
// writer and releases the engine and gateway connections.
func New(dep Dependency) (func(context.Context) error, error) {
	gw, err := newGateway(dep.Config)
	if err != nil {
		return nil, fmt.Errorf("init gateway: %w", err)
	}

	rev, err := pkguid.NewSnowflake()
	if err != nil {
		return nil, fmt.Errorf("init revisioner: %w", err)
	}

	key := dep.Config.GetString("modules.wallet.ledger.key")
	if key == "" {
		key = "transactions"
	}

	writer := state.NewSnapshotWriter(gw, key, state.WriterConfig{
		MaxRetries:  int(dep.Config.GetInt("modules.wallet.ledger.max_retries")),
		BaseBackoff: time.Duration(dep.Config.GetInt("modules.wallet.ledger.retry_backoff_ms")) * time.Millisecond,
	})

	store := state.New(state.Dependency{
		Gateway: gw,
		Key:     key,
		Rev:     rev,
		Writer:  writer,
	})
	if err := store.Load(dep.Context); err != nil {
		return nil, fmt.Errorf("load ledger snapshot: %w", err)
	}
	writer.Start()

	eng := dep.Engine
	if eng == nil {
		eng, err = newEngine(dep.Config)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
	}

	decoder, err := engine.NewBolt11Decoder(dep.Config.GetString("modules.wallet.engine.lnd.network"))
	if err != nil {
		return nil, fmt.Errorf("init invoice decoder: %w", err)
	}

	receive := flow.NewReceive(flow.ReceiveDependency{Engine: eng, Ledger: store})
	send := flow.NewSend(flow.SendDependency{Engine: eng, Decoder: decoder, Ledger: store})

	// The balance subscription talks to the engine, so it bootstraps on
	// the app goroutine manager instead of blocking module init on an
	// unreachable node.
	balance := state.NewBalance()
	var balanceSub stopHolder
	dep.Goroutine.Go(dep.Context, func(ctx context.Context) error {
		stop, err := eng.SubscribeBalance(ctx, balance.Set)
		if err != nil {
			return fmt.Errorf("subscribe balance: %w", err)
		}
		balanceSub.set(stop)
		return nil
	})

	inbound.RegisterHTTPEndpoint(dep.Router, inbound.Dependency{
		Ledger:  store,
		Receive: receive,
		Send:    send,
		Balance: balance,
	})

	return func(ctx context.Context) error {
		receive.ResetState()
		balanceSub.stop()

		err := writer.Stop(ctx)

		if closer, ok := eng.(interface{ Close() error }); ok {
			err = errors.Join(err, closer.Close())
		}

		return errors.Join(err, gw.Close())
	}, nil
}

// stopHolder keeps the stop function of a subscription that is created
// after New returns.
type stopHolder struct {
	mu sync.Mutex
	fn func()
}

func (h *stopHolder) set(fn func()) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

func (h *stopHolder) stop() {
	h.mu.Lock()
	fn := h.fn
	h.fn = nil
	h.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func newGateway(cfg pkgconfig.Config) (gateway.Gateway, error) {
	switch kind := cfg.GetString("modules.wallet.gateway.type"); kind {
	case "", "memory":
		return gateway.NewMemory(), nil
	case "file":
		return gateway.NewFile(cfg.GetString("modules.wallet.gateway.file.dir"))
	case "redis":
		return gateway.NewRedis(gateway.RedisConfig{
			Addr:     cfg.GetString("modules.wallet.gateway.redis.address"),
			Password: cfg.GetString("modules.wallet.gateway.redis.password"),
			DB:       int(cfg.GetInt("modules.wallet.gateway.redis.db")),
			Prefix:   cfg.GetString("modules.wallet.gateway.redis.prefix"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown gateway type %q", kind)
	}
}

func newEngine(cfg pkgconfig.Config) (engine.Engine, error) {
	return engine.NewLND(engine.LNDConfig{
		Host:         cfg.GetString("modules.wallet.engine.lnd.host"),
		TLSCertPath:  cfg.GetString("modules.wallet.engine.lnd.tls_cert"),
		MacaroonPath: cfg.GetString("modules.wallet.engine.lnd.macaroon"),
		BalancePoll:  time.Duration(cfg.GetInt("modules.wallet.engine.lnd.balance_poll_seconds")) * time.Second,
		PayTimeout:   time.Duration(cfg.GetInt("modules.wallet.engine.lnd.pay_timeout_seconds")) * time.Second,
		FeeLimitMsat: cfg.GetInt("modules.wallet.engine.lnd.fee_limit_msat"),
	})
}
