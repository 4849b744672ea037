package kafkax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// SplitBrokers parses a KAFKA_BROKERS value such as "kafka-1:9092,kafka-2:9092".
func SplitBrokers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}

// ReadyCheck passes once a broker answers a metadata request. Brokers are tried in order.
func ReadyCheck(brokers string) func(context.Context) error {
	addrs := SplitBrokers(brokers)
	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		if len(addrs) == 0 {
			return errors.New("kafka brokers not configured")
		}
		var errs []error
		for _, addr := range addrs {
			err := probeBroker(ctx, dialer, addr)
			if err == nil {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			if ctx.Err() != nil {
				break
			}
		}
		return errors.Join(errs...)
	}
}

func probeBroker(ctx context.Context, dialer *kafka.Dialer, addr string) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	_, err = conn.Brokers()
	return err
}
