package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"service-delivery-tracking/internal/service/payments"
	testlog "service-delivery-tracking/internal/testutil"
)

type fakeGroup struct {
	calls  int32
	err    error
	closed int32
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	atomic.AddInt32(&g.calls, 1)
	if g.err != nil {
		return g.err
	}
	<-ctx.Done()
	return nil
}

func (g *fakeGroup) Errors() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}

func (g *fakeGroup) Close() error {
	atomic.AddInt32(&g.closed, 1)
	return nil
}

func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func TestNewConsumer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	got, err := NewConsumer(rec.Logger(), nil, "gid", "topic", func(context.Context, payments.Event) error { return nil })
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "", "topic", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "   ", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	var nilConsumer *Consumer
	require.NoError(t, nilConsumer.Run(context.Background()))
	require.NoError(t, nilConsumer.Close())
}

func TestNewConsumer_ReturnsErrorWhenSaramaFails(t *testing.T) {
	orig := newConsumerGroup
	t.Cleanup(func() { newConsumerGroup = orig })

	sentinel := errors.New("boom")
	newConsumerGroup = func(_ []string, _ string, _ *sarama.Config) (sarama.ConsumerGroup, error) {
		return nil, sentinel
	}

	rec := testlog.New()
	got, err := NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "topic", nil)
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, got)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	g := &fakeGroup{}
	c := &Consumer{group: g, topic: "payments", logger: testlog.New().Logger(), backoff: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, c.Close())
	require.Equal(t, int32(1), atomic.LoadInt32(&g.closed))
}

func TestRun_BacksOffOnConsumeError(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	g := &fakeGroup{err: errors.New("broker down")}
	c := &Consumer{group: g, topic: "payments", logger: rec.Logger(), backoff: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = c.Run(ctx)
	require.Greater(t, atomic.LoadInt32(&g.calls), int32(1))
	require.True(t, hasMsg(rec.Entries(), "kafka consume error"))
}
