// Package publish pushes decoded real-time batches onto NATS for live
// downstream consumers. Publishing is a post-decode side effect: failures are
// logged and never influence ingestion results.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"

	"transit/gtfs-ingest/gtfsrt"
)

// Publisher wraps one NATS connection.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-ingest"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PublishBatch sends the decoded batch as JSON on gtfs.rt.<kind>.<slug>.
func (p *Publisher) PublishBatch(slug string, batch *gtfsrt.FeedBatch) error {
	subject := fmt.Sprintf("gtfs.rt.%s.%s", subjectToken(string(batch.Kind)), subjectToken(slug))
	b, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, b)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
