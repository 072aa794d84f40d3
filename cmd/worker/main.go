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
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/invoice"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	cfg.Log.ServiceName = cfg.ServiceName + "-worker"
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	logx.Must(err)
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword)
	defer rdb.Close()

	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 256)
	changed.Start(ctx)

	m := metrics.New(prometheus.NewRegistry())
	repo := &orders.Repo{DB: db}
	worker := &invoice.Worker{
		Orders: repo,
		Advancer: &orders.Service{
			Store:   repo,
			Cache:   &orders.StatusCache{Redis: rdb},
			Events:  &orders.Events{StatusChanged: changed, Producer: cfg.Log.ServiceName},
			Metrics: m,
		},
		Sender:  invoice.NewBreakerSender(invoice.LogSender{}, cfg.InvoiceSendTimeout),
		Metrics: m,
	}

	srv := invoice.NewServer(
		asynq.RedisClientOpt{Addr: cfg.QueueRedisAddr, Password: cfg.RedisPassword},
		cfg.InvoiceConcurrency,
		worker,
	)
	if err := srv.Start(invoice.NewServeMux(worker)); err != nil {
		logx.Must(err)
	}
	logx.Infof("invoice worker started: queue=%s concurrency=%d", invoice.Queue, cfg.InvoiceConcurrency)

	// metrics only; the worker has no other HTTP surface
	ms := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Errorf("metrics listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logx.Info("shutting down worker...")

	srv.Shutdown()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = ms.Shutdown(ctx2)
	changed.Close()
	cancel()
	changed.WaitClosed()
}
