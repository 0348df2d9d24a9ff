// Package bot wires the water delivery domain onto the shared Telegram
// chassis: commands, callbacks, conversation step handlers and the background
// workers that run alongside the bot.
package bot

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	coretelegram "github.com/aquapure/waterbot/core/telegram"
	"github.com/aquapure/waterbot/core/telegram/router"
	"github.com/aquapure/waterbot/core/telegram/state"
	"github.com/aquapure/waterbot/internal/conversation"
	"github.com/aquapure/waterbot/internal/notify"
	"github.com/aquapure/waterbot/internal/renewal"
	"github.com/aquapure/waterbot/internal/service"
)

// App bundles the services behind the bot handlers.
type App struct {
	cfg *Config
	db  *sqlx.DB

	sessions state.Manager

	users     service.UserStore
	catalog   service.ProductCatalog
	addresses service.AddressBook
	orders    service.OrderStore
	loyalty   service.LoyaltyLedger
	subs      service.SubscriptionStore

	checkout *service.Checkout
	engine   *conversation.Engine
	notifier *notify.Notifier
	events   notify.EventPublisher
	renewals *renewal.Scheduler
}

// New assembles the application over an open database pool.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	users := service.NewPGUserStore(db)
	catalog := service.NewPGCatalog(db)
	addresses := service.NewPGAddressBook(db)
	orders := service.NewPGOrderStore(db)
	deliveries := service.NewPGDeliveryStore(db)
	loyalty := service.NewPGLoyaltyLedger(db)
	subs := service.NewPGSubscriptionStore(db)

	var events notify.EventPublisher = notify.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		events = kp
	}
	notifier := notify.NewNotifier(users, events)

	var cards service.CardCharger
	if cfg.Card.Endpoint != "" {
		cards = service.NewHTTPCardCharger(coretelegram.BuildHTTPClient(), cfg.Card.Endpoint, cfg.Card.APIKey)
	}
	payments := service.NewPayments(loyalty, cards)

	checkout := service.NewCheckout(service.CheckoutDeps{
		Catalog:    catalog,
		Addresses:  addresses,
		Orders:     orders,
		Deliveries: deliveries,
		Payments:   payments,
		Loyalty:    loyalty,
		Notify:     notifier,
		Fees:       cfg.FeeSchedule(),
		Warehouse:  cfg.WarehouseCoord(),
	})

	slotSvc := service.NewSlots(orders, cfg.SlotWindow())
	sessions := state.NewMemoryManager()

	engine := conversation.NewEngine(conversation.EngineDeps{
		Manager:   sessions,
		Catalog:   catalog,
		Addresses: addresses,
		Slots:     slotSvc,
		Orders:    checkout,
		Subs:      subs,
		Loyalty:   loyalty,
	})

	renewals := renewal.New(renewal.Deps{
		Subs:      subs,
		Catalog:   catalog,
		Addresses: addresses,
		Slots:     slotSvc,
		Orders:    checkout,
		Notify:    notifier,
		Interval:  time.Duration(cfg.Renewal.IntervalMinutes) * time.Minute,
	})

	return &App{
		cfg:       cfg,
		db:        db,
		sessions:  sessions,
		users:     users,
		catalog:   catalog,
		addresses: addresses,
		orders:    orders,
		loyalty:   loyalty,
		subs:      subs,
		checkout:  checkout,
		engine:    engine,
		notifier:  notifier,
		events:    events,
		renewals:  renewals,
	}, nil
}

// TelegramRunOptions builds the bot runtime: registry, routes, middlewares
// and the lifecycle hooks that start the renewal sweep and session reaper.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	if err := a.registerCallbacks(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	a.registerStepHandlers()
	reg.SetCallbackNotFound(a.UnknownCallback())
	reg.SetTextFallback(a.UnknownText())

	core := a.cfg.CoreConfig()

	routes := []coretelegram.Route{
		router.CallbackRoute(reg, router.CallbackOptions{}),
	}
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})...)
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{
		UnknownText:     a.UnknownText(),
		UnknownDocument: a.UnknownDocument(),
	})...)

	ttl := time.Duration(a.cfg.Session.TTLMinutes) * time.Minute
	reapEvery := time.Duration(a.cfg.Session.ReapIntervalMinutes) * time.Minute

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.notifier.Bind(rt.Bot, rt.Dispatcher)
			go a.renewals.Run(ctx)
			go state.RunReaper(ctx, a.sessions, reapEvery, ttl)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.events.Close()
		},
	}, nil
}
