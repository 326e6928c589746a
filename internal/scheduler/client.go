package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"valdi_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const taskMaxRetry = 5

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueTranscription schedules transcription of a stored recording.
// Enqueueing the same recording twice is a no-op.
func (c *Client) EnqueueTranscription(ctx context.Context, recordingID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewTranscribeRecordingTask(RecordingPayload{RecordingID: recordingID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, "transcribe:"+recordingID.String())
}

// EnqueueScoring schedules automatic qualification scoring of a transcribed recording.
func (c *Client) EnqueueScoring(ctx context.Context, recordingID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewScoreRecordingTask(RecordingPayload{RecordingID: recordingID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, "score:"+recordingID.String())
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string) error {
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(taskMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NewRedisClient opens a go-redis client with the same URL and TLS handling as the task queue.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfigFor(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfigFor(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfigFor(base *tls.Config, tlsInsecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if tlsInsecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}
