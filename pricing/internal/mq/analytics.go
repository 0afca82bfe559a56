// Package mq publishes calculation analytics over ZeroMQ.
package mq

import (
	"sync"

	zmq "github.com/pebbe/zmq4"
)

type AnalyticsPublisher struct {
	mu     sync.Mutex // zmq sockets are not safe for concurrent use
	socket *zmq.Socket
}

// NewAnalyticsPublisher binds a ZMQ PUB socket on bindAddr, e.g. "tcp://*:5557".
func NewAnalyticsPublisher(bindAddr string) (*AnalyticsPublisher, error) {
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(bindAddr); err != nil {
		sock.Close()
		return nil, err
	}
	return &AnalyticsPublisher{socket: sock}, nil
}

// Publish emits one calculation metric.
func (p *AnalyticsPublisher) Publish(m CalculationMetric) error {
	payload := EncodeCalculationMetric(m)

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.socket.SendBytes(payload, 0)
	return err
}

func (p *AnalyticsPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socket.Close()
}
