package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// WorkerConfig holds job execution parameters
type WorkerConfig struct {
	// MaxRetries caps re-executions of a failed job.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number before a retry is
	// re-published.
	RetryBackoff time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRetries:   3,
		RetryBackoff: 60 * time.Second,
	}
}

// Worker consumes notification jobs from the broker and executes them
// against the configured channels. Failed jobs are re-published with an
// incremented attempt count after a linear backoff, up to MaxRetries.
type Worker struct {
	client   mqtt.Client
	topic    string
	channels []Channel
	config   WorkerConfig

	jobs chan *Job
}

func NewWorker(client mqtt.Client, topic string, channels []Channel, config WorkerConfig) *Worker {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultWorkerConfig().MaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultWorkerConfig().RetryBackoff
	}
	return &Worker{
		client:   client,
		topic:    topic,
		channels: channels,
		config:   config,
		jobs:     make(chan *Job, 64),
	}
}

// Start subscribes to the job topic and executes jobs until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	token := w.client.Subscribe(w.topic, 1, w.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to job topic %s: %w", w.topic, token.Error())
	}
	log.Printf("Worker: Subscribed to job topic: %s", w.topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker: stopping")
			return nil
		case job := <-w.jobs:
			w.execute(ctx, job)
		}
	}
}

func (w *Worker) handleMessage(client mqtt.Client, msg mqtt.Message) {
	var job Job
	if err := json.Unmarshal(msg.Payload(), &job); err != nil {
		log.Printf("Worker: error unmarshaling job: %v", err)
		return
	}

	select {
	case w.jobs <- &job:
	case <-time.After(1 * time.Second):
		log.Printf("Worker: job channel full, dropping job %s", job.ID)
	}
}

func (w *Worker) execute(ctx context.Context, job *Job) {
	log.Printf("Worker: executing %s job %s for device %s (attempt %d)", job.Kind, job.ID, job.DeviceID, job.Attempt)

	subject, body := RenderJob(job)

	var failed bool
	for _, ch := range w.channels {
		if !ch.Enabled() {
			continue
		}
		if err := ch.Send(ctx, subject, body); err != nil {
			log.Printf("Worker: error sending job %s via %s: %v", job.ID, ch.Name(), err)
			failed = true
		}
	}

	if failed {
		w.retry(job)
	}
}

// retry re-publishes a failed job with an incremented attempt count after a
// backoff proportional to the attempt number.
func (w *Worker) retry(job *Job) {
	if job.Attempt >= w.config.MaxRetries {
		log.Printf("Worker: job %s exhausted %d attempts, giving up", job.ID, job.Attempt+1)
		return
	}

	job.Attempt++
	backoff := time.Duration(job.Attempt) * w.config.RetryBackoff
	log.Printf("Worker: retrying job %s in %v (attempt %d/%d)", job.ID, backoff, job.Attempt, w.config.MaxRetries)

	time.AfterFunc(backoff, func() {
		payload, err := json.Marshal(job)
		if err != nil {
			log.Printf("Worker: error marshaling retry for job %s: %v", job.ID, err)
			return
		}
		token := w.client.Publish(w.topic, 1, false, payload)
		if token.Wait() && token.Error() != nil {
			log.Printf("Worker: error re-publishing job %s: %v", job.ID, token.Error())
		}
	})
}
