package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/invoice"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrateOnStart {
		logx.Must(postgres.Migrate(cfg.PostgresDSN))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	logx.Must(err)
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword)
	defer rdb.Close()

	// Kafka producers, one per topic
	created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	created.Start(ctx)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	changed.Start(ctx)

	// Invoice queue
	queueOpt := asynq.RedisClientOpt{Addr: cfg.QueueRedisAddr, Password: cfg.RedisPassword}
	queue := asynq.NewClient(queueOpt)
	defer queue.Close()
	inspector := asynq.NewInspector(queueOpt)
	defer inspector.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	carts := cart.NewCache(rdb)
	catalogSvc := catalog.NewService(&catalog.Repo{DB: db}, carts)
	cartSvc := cart.NewService(&cart.Repo{DB: db}, carts)
	orderSvc := &orders.Service{
		Store: &orders.Repo{DB: db},
		Cache: &orders.StatusCache{Redis: rdb},
		Carts: carts,
		Events: &orders.Events{
			Created:       created,
			StatusChanged: changed,
			Producer:      cfg.ServiceName,
		},
		Metrics: m,
	}
	paymentSvc := &payment.Service{
		Store:    &payment.Repo{DB: db},
		Invoices: &invoice.Enqueuer{Client: queue},
		Orders:   orderSvc,
		Metrics:  m,
	}

	router := httpx.NewRouter(m, cfg.RequestTimeout)
	httpx.Mount(router, httpx.Handlers{
		Catalog:  &httpx.CatalogHandler{Service: catalogSvc},
		Cart:     &httpx.CartHandler{Service: cartSvc},
		Orders:   &httpx.OrdersHandler{Service: orderSvc},
		Payments: &httpx.PaymentsHandler{Service: paymentSvc},
		Queues:   &httpx.QueuesHandler{Inspector: invoice.NewInspector(inspector)},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logx.Infof("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Errorf("listen: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logx.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	created.Close()
	changed.Close()
	cancel()
	created.WaitClosed()
	changed.WaitClosed()
}
