package rabbitmq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/recipe-snap/internal/job"
)

type ConsumerConfig struct {
	URL         string
	Queue       string
	Concurrency int
	// MaxRetries is how often a failed delivery goes through the retry
	// queue before it is dead-lettered.
	MaxRetries int
	RetryDelay time.Duration
}

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  ConsumerConfig
	log  *zerolog.Logger

	// republish sends a failed job to the retry queue.
	republish func(ctx context.Context, queue string, m JobMessage, headers amqp.Table, expiration string) error
}

func NewConsumer(cfg ConsumerConfig, log *zerolog.Logger) (*Consumer, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Concurrency > 50 {
		cfg.Concurrency = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	// strict concurrency control
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c := &Consumer{conn: conn, ch: ch, cfg: cfg, log: log}
	c.republish = func(ctx context.Context, queue string, m JobMessage, headers amqp.Table, expiration string) error {
		return publish(ctx, ch, queue, m, headers, expiration)
	}
	return c, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run consumes until ctx is done, handing each job id to run on a pool of
// cfg.Concurrency goroutines. Jobs already running are finished before Run
// returns; buffered deliveries that never started go back to the queue.
func (c *Consumer) Run(ctx context.Context, run job.RunFunc) error {
	msgs, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info().Str("queue", c.cfg.Queue).Int("concurrency", c.cfg.Concurrency).Msg("worker started")

	deliveries := make(chan amqp.Delivery, c.cfg.Concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				c.handle(ctx, workerID, d, run)
			}
		}(i)
	}

	defer func() {
		close(deliveries)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			deliveries <- d
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery, run job.RunFunc) {
	m, err := decodeMessage(d.Body)
	if err != nil {
		c.log.Warn().Err(err).Int("worker", workerID).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	if ctx.Err() != nil {
		if err := d.Nack(false, true); err != nil {
			c.log.Warn().Err(err).Str("job_id", m.JobID).Msg("requeue on shutdown failed")
		}
		return
	}

	start := time.Now()
	err = run(ctx, m.JobID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			c.log.Error().Err(err).Int("worker", workerID).Str("job_id", m.JobID).Msg("ack failed")
		}
		return
	}

	n := retries(d.Headers)
	c.log.Error().Err(err).Int("worker", workerID).Str("job_id", m.JobID).
		Int("retries", n).Dur("cost", time.Since(start)).Msg("job failed")

	if n >= c.cfg.MaxRetries {
		_ = d.Nack(false, false)
		return
	}
	headers := amqp.Table{retryHeader: int32(n + 1)}
	expiration := strconv.FormatInt(c.cfg.RetryDelay.Milliseconds(), 10)
	if perr := c.republish(context.WithoutCancel(ctx), retryQueue(c.cfg.Queue), m, headers, expiration); perr != nil {
		c.log.Error().Err(perr).Str("job_id", m.JobID).Msg("retry publish failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
