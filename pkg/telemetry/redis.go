package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// DefaultKey is the hash (and channel) the state is written to.
const DefaultKey = "teensy"

// Hash fields.
const (
	FieldSpeed     = "speed"
	FieldThrottle  = "throttle"
	FieldSteering  = "steering"
	FieldMode      = "mode"
	FieldTimestamp = "state:timestamp"
	FieldFault     = "fault"
	FieldFaultMsg  = "fault:message"
)

// RedisPublisher writes the state into a redis hash and notifies the
// changed fields on the channel of the same name.
type RedisPublisher struct {
	Key string

	client *redis.Client
	last   map[string]string
}

// NewRedisPublisher connects to redis, e.g. redis://localhost:6379/0.
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	glog.Infof("publishing telemetry to redis %s", opts.Addr)
	return &RedisPublisher{Key: DefaultKey, client: client}, nil
}

// StateFields formats the state as hash fields.
func StateFields(st vehicle.State) map[string]string {
	return map[string]string{
		FieldSpeed:    strconv.FormatFloat(st.Speed, 'f', -1, 64),
		FieldThrottle: strconv.FormatFloat(st.Throttle, 'f', -1, 64),
		FieldSteering: strconv.FormatFloat(st.Steering, 'f', -1, 64),
		FieldMode:     st.Mode.String(),
	}
}

// ChangedFields returns the names of fields in cur differing from prev.
func ChangedFields(prev, cur map[string]string) []string {
	var changed []string
	for _, name := range []string{FieldSpeed, FieldThrottle, FieldSteering, FieldMode} {
		if val, ok := cur[name]; ok && prev[name] != val {
			changed = append(changed, name)
		}
	}
	return changed
}

// PublishState implements Publisher.
func (p *RedisPublisher) PublishState(ctx context.Context, st vehicle.State) error {
	fields := StateFields(st)
	changed := ChangedFields(p.last, fields)
	if len(changed) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, name := range changed {
		pipe.HSet(ctx, p.Key, name, fields[name])
	}
	pipe.HSet(ctx, p.Key, FieldTimestamp, time.Now().Format(time.RFC3339Nano))
	for _, name := range changed {
		pipe.Publish(ctx, p.Key, name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	p.last = fields
	return nil
}

// PublishFault implements Publisher.
func (p *RedisPublisher) PublishFault(ctx context.Context, reason, message string) error {
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, p.Key, FieldFault, reason, FieldFaultMsg, message)
	pipe.Publish(ctx, p.Key, FieldFault)
	_, err := pipe.Exec(ctx)
	return err
}

// Close implements Publisher.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
