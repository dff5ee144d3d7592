package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Dispatcher routes alerts to the notification queue, falling back to direct
// channel delivery when the queue path is down. All entry points return
// immediately; delivery runs in its own goroutine and never reports failure
// to the caller.
type Dispatcher struct {
	queue    JobPublisher
	breaker  *Breaker
	channels []Channel
	timeout  time.Duration
}

// NewDispatcher builds a dispatcher. A nil queue means queueing is not
// available and every notification goes directly to the channels.
func NewDispatcher(queue JobPublisher, breaker *Breaker, channels []Channel) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		breaker:  breaker,
		channels: channels,
		timeout:  30 * time.Second,
	}
}

// BreachAlert notifies staff of a security boundary breach.
func (d *Dispatcher) BreachAlert(deviceID, roomID string, rssi int) {
	job := NewJob(JobKindBreach, deviceID)
	job.RoomID = roomID
	job.RSSI = rssi
	go d.dispatch(job)
}

// BatteryAlert notifies staff of a low battery.
func (d *Dispatcher) BatteryAlert(deviceID string, level int) {
	job := NewJob(JobKindBattery, deviceID)
	job.Level = level
	go d.dispatch(job)
}

// OfflineAlert notifies staff of a device that stopped reporting.
func (d *Dispatcher) OfflineAlert(deviceID, lastSeen string) {
	job := NewJob(JobKindOffline, deviceID)
	job.LastSeen = lastSeen
	go d.dispatch(job)
}

func (d *Dispatcher) dispatch(job *Job) {
	if d.queue != nil && d.breaker.Allow() {
		if err := d.queue.Enqueue(job); err != nil {
			d.breaker.Failure()
			log.Printf("Dispatcher: error enqueueing job %s, sending directly: %v", job.ID, err)
		} else {
			d.breaker.Success()
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	SendJob(ctx, job, d.channels)
}

// SendJob fans a job out to every enabled channel concurrently. One failing
// channel never blocks or cancels the others; errors are logged per channel.
func SendJob(ctx context.Context, job *Job, channels []Channel) {
	subject, body := RenderJob(job)

	var wg sync.WaitGroup
	for _, ch := range channels {
		if !ch.Enabled() {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, subject, body); err != nil {
				log.Printf("Dispatcher: error sending %s job %s via %s: %v", job.Kind, job.ID, ch.Name(), err)
			} else {
				log.Printf("Dispatcher: sent %s notification for device %s via %s", job.Kind, job.DeviceID, ch.Name())
			}
		}(ch)
	}
	wg.Wait()
}

// RenderJob formats the human-readable notification for a job.
func RenderJob(job *Job) (subject, body string) {
	switch job.Kind {
	case JobKindBreach:
		subject = fmt.Sprintf("SECURITY BREACH - Device %s", job.DeviceID)
		body = fmt.Sprintf(
			"A security boundary breach was detected.\n\nDevice: %s\nRoom: %s\nSignal: %d dBm\n\nPlease verify the tablet's location immediately.",
			job.DeviceID, job.RoomID, job.RSSI)
	case JobKindBattery:
		subject = fmt.Sprintf("Low battery - Device %s", job.DeviceID)
		body = fmt.Sprintf(
			"Device %s reported a low battery level of %d%%.\n\nPlease charge or replace the tablet soon.",
			job.DeviceID, job.Level)
	case JobKindOffline:
		subject = fmt.Sprintf("Device offline - %s", job.DeviceID)
		body = fmt.Sprintf(
			"Device %s stopped sending heartbeats.\n\nLast seen: %s\n\nPlease check the tablet's power and network.",
			job.DeviceID, job.LastSeen)
	default:
		subject = fmt.Sprintf("Notification - Device %s", job.DeviceID)
		body = fmt.Sprintf("Device %s raised a %s notification.", job.DeviceID, job.Kind)
	}
	return subject, body
}
