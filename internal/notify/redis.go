package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindmate/scheduling/pkg/logging"
)

const DefaultStream = "booking:events"

// NewRedisClient builds a redis client and verifies connectivity.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// RedisNotifier appends events to a redis stream so downstream consumers
// (email, push, audit) can pick them up at their own pace.
type RedisNotifier struct {
	client *redis.Client
	stream string
	logger *logging.Logger
}

func NewRedisNotifier(client *redis.Client, stream string, logger *logging.Logger) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisNotifier{client: client, stream: stream, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, ev Event) {
	// Bounded so a slow redis cannot stall the caller for long; the
	// state transition has already committed by the time we get here.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"type":           string(ev.Type),
			"appointment_id": ev.AppointmentID.String(),
			"slot_id":        ev.SlotID.String(),
			"patient_id":     ev.PatientID.String(),
			"specialist_id":  ev.SpecialistID.String(),
			"at":             ev.At.UTC().Format(time.RFC3339Nano),
			"detail":         ev.Detail,
		},
	}).Err()
	if err != nil {
		n.logger.Error("failed to publish booking event",
			"type", string(ev.Type), "error", err)
	}
}
