package notify

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Job kinds.
const (
	JobKindBreach  = "breach"
	JobKindBattery = "battery"
	JobKindOffline = "offline"
)

// Job is one queued notification. Attempt counts executions so the worker
// can cap retries.
type Job struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId,omitempty"`
	RSSI     int    `json:"rssi,omitempty"`
	Level    int    `json:"level,omitempty"`
	LastSeen string `json:"lastSeen,omitempty"`
	Attempt  int    `json:"attempt"`
}

// NewJob assigns an ID and returns the job.
func NewJob(kind, deviceID string) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		DeviceID: deviceID,
	}
}

// JobPublisher is the dispatcher's view of the queue.
type JobPublisher interface {
	Enqueue(job *Job) error
}

// Queue hands notification jobs to the worker process over the broker.
type Queue struct {
	client mqtt.Client
	topic  string
}

func NewQueue(client mqtt.Client, topic string) *Queue {
	return &Queue{client: client, topic: topic}
}

// Enqueue publishes the job at QoS 1. The broker acknowledgement is the
// durability boundary; a failed publish is the caller's signal to fall back.
func (q *Queue) Enqueue(job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	token := q.client.Publish(q.topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, token.Error())
	}

	log.Printf("Queue: enqueued %s job %s for device %s (attempt %d)", job.Kind, job.ID, job.DeviceID, job.Attempt)
	return nil
}
