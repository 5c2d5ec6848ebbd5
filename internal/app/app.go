// Package app wires the engine and its collaborators from configuration.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teralab/chatorder/internal/catalog"
	"github.com/teralab/chatorder/internal/conversation"
	"github.com/teralab/chatorder/internal/delivery"
	"github.com/teralab/chatorder/internal/inventory"
	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/payment"
	"github.com/teralab/chatorder/internal/recommend"
	"github.com/teralab/chatorder/internal/session"
	"github.com/teralab/chatorder/internal/storage"
)

// Config holds everything the app needs to start.
type Config struct {
	// Sessions
	SessionTTL    time.Duration
	RedisAddr     string // empty selects the in-memory session store
	RedisPassword string

	// Orders
	DBPath           string // empty disables SQLite persistence
	FreeDeliveryCity string
	DeliveryFee      int64
	Currency         string

	// Payments
	PaymentTimeout     time.Duration
	MaxPaymentInFlight int
	WaveBaseURL        string
	WaveAPIKey         string
	OrangeBaseURL      string
	OrangeMerchantKey  string
	CardBaseURL        string
	CardAPIKey         string
	CallbackBaseURL    string

	// Catalog seed; defaults apply when empty.
	Products  []catalog.Product
	Stock     map[string]int
	CrossSell map[string][]recommend.Candidate

	Logger *slog.Logger
}

// App is the assembled application.
type App struct {
	Engine     *conversation.Engine
	Bus        *payment.MemoryBus
	Reconciler *payment.Reconciler
	Orders     storage.Persistence
	Sessions   *session.Manager
	Log        *slog.Logger
}

// New builds the app. The reconciler is started and bound to the engine's
// single-writer apply path.
func New(cfg Config) (*App, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.FreeDeliveryCity == "" {
		cfg.FreeDeliveryCity = "Dakar"
	}
	if cfg.DeliveryFee <= 0 {
		cfg.DeliveryFee = 2000
	}
	if cfg.Currency == "" {
		cfg.Currency = "XOF"
	}
	if len(cfg.Products) == 0 {
		cfg.Products = defaultProducts
		cfg.Stock = defaultStock
		cfg.CrossSell = defaultCrossSell
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	sessions := session.NewManager(store)

	var persist storage.Persistence = storage.Noop{}
	if cfg.DBPath != "" {
		persist, err = storage.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("order persistence: %w", err)
		}
	}

	stock := inventory.NewMemory(cfg.Stock)
	gateway := payment.NewGateway(
		&payment.WaveAdapter{
			BaseURL:    cfg.WaveBaseURL,
			APIKey:     cfg.WaveAPIKey,
			SuccessURL: cfg.CallbackBaseURL + "/payments/success",
			ErrorURL:   cfg.CallbackBaseURL + "/payments/error",
		},
		&payment.OrangeMoneyAdapter{
			BaseURL:     cfg.OrangeBaseURL,
			MerchantKey: cfg.OrangeMerchantKey,
			ReturnURL:   cfg.CallbackBaseURL + "/payments/success",
			CancelURL:   cfg.CallbackBaseURL + "/payments/error",
			NotifURL:    cfg.CallbackBaseURL + "/payments/callback",
		},
		&payment.CardAdapter{
			BaseURL: cfg.CardBaseURL,
			APIKey:  cfg.CardAPIKey,
		},
		payment.CashAdapter{},
		cfg.MaxPaymentInFlight,
	)

	engine := conversation.New(conversation.Config{
		Sessions:  sessions,
		Catalog:   catalog.NewStatic(cfg.Products),
		Inventory: stock,
		Stock:     stock,
		Delivery:  delivery.NewFlatRate(cfg.FreeDeliveryCity, cfg.DeliveryFee),
		Gateway:   gateway,
		Recommend: recommend.New(cfg.CrossSell, 4, 0.75),
		Persist:   persist,
		Logger:    log,
		Currency:  cfg.Currency,
	})

	bus := payment.NewMemoryBus()
	reconciler := payment.NewReconciler(bus, engine.ApplyPaymentOutcome, cfg.PaymentTimeout, log)
	engine.SetWatcher(reconciler)
	engine.SetNotifier(func(sessionID string, msg *model.AssistantMessage) {
		log.Info("payment outcome delivered",
			"session_id", sessionID, "next_step", msg.Metadata.NextStep)
	})

	return &App{
		Engine:     engine,
		Bus:        bus,
		Reconciler: reconciler,
		Orders:     persist,
		Sessions:   sessions,
		Log:        log,
	}, nil
}

func newSessionStore(cfg Config) (session.Store, error) {
	if cfg.RedisAddr == "" {
		return session.NewStore(session.StoreTypeMemory, session.WithTTL(cfg.SessionTTL))
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return session.NewStore(session.StoreTypeRedis,
		session.WithRedisClient(client),
		session.WithTTL(cfg.SessionTTL),
	)
}

// Close tears the app down: reconciler first so no apply races the
// closing stores.
func (a *App) Close() {
	a.Reconciler.Close()
	if err := a.Sessions.Close(); err != nil {
		a.Log.Error("session store close failed", "error", err)
	}
	if err := a.Orders.Close(); err != nil {
		a.Log.Error("order store close failed", "error", err)
	}
}
