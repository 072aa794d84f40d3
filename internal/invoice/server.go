package invoice

import (
	"os"

	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
)

func NewServer(opt asynq.RedisConnOpt, concurrency int, w *Worker) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{Queue: 1},
		RetryDelayFunc: RetryDelay,
		ErrorHandler:   asynq.ErrorHandlerFunc(w.HandleError),
		Logger:         QueueLogger{},
	})
}

func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSendInvoice, w.ProcessTask)
	return mux
}

// QueueLogger routes asynq's internal logging into logx.
type QueueLogger struct{}

func (QueueLogger) Debug(args ...any) { logx.Debug(args...) }
func (QueueLogger) Info(args ...any)  { logx.Info(args...) }
func (QueueLogger) Warn(args ...any)  { logx.Slow(args...) }
func (QueueLogger) Error(args ...any) { logx.Error(args...) }

func (QueueLogger) Fatal(args ...any) {
	logx.Severe(args...)
	logx.Close()
	os.Exit(1)
}
