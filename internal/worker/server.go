package worker

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/trnhan/paperscore/config"
)

// NewServer builds the asynq worker server. Retries back off exponentially
// from the configured base delay.
func NewServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			Queues: map[string]int{
				QueueEvaluation: 5,
				"default":       1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return cfg.Pipeline.BaseRetryDelay << n
			},
			Logger: asynqLogger{},
		},
	)
}

// NewMux registers the pipeline handlers.
func NewMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSchemePrepare, p.HandleSchemePrepare)
	mux.HandleFunc(TypeSheetEvaluate, p.HandleSheetEvaluate)
	mux.HandleFunc(TypeBulkEvaluate, p.HandleBulkEvaluate)
	return mux
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { log.Debug().Msgf("%v", args) }
func (asynqLogger) Info(args ...interface{})  { log.Info().Msgf("%v", args) }
func (asynqLogger) Warn(args ...interface{})  { log.Warn().Msgf("%v", args) }
func (asynqLogger) Error(args ...interface{}) { log.Error().Msgf("%v", args) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatal().Msgf("%v", args) }
