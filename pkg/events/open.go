package events

import (
	"fmt"
	"strings"
)

// Publisher drivers accepted by Open.
const (
	DriverNone  = "none"
	DriverRedis = "redis"
	DriverAMQP  = "amqp"
)

// Options selects and configures a Publisher.
type Options struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	Stream        string
	AMQPURL       string
	Exchange      string
}

// Open builds the publisher named by opts.Driver. An empty driver means none.
func Open(opts Options) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverNone:
		return NopPublisher{}, nil
	case DriverRedis:
		p, err := NewRedisStreamPublisher(RedisStreamConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			Stream:   opts.Stream,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverAMQP:
		p, err := NewAMQPPublisher(AMQPConfig{URL: opts.AMQPURL, Exchange: opts.Exchange})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
	}
}
