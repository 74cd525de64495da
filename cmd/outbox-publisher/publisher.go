package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// orderedPublisher resumes a paused ordering key after a failed publish so the
// row can be retried. The topic must have message ordering enabled.
type orderedPublisher struct {
	topic *gcppubsub.Publisher
}

func newOrderedPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &orderedPublisher{topic: p}
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		res:   p.topic.Publish(ctx, msg),
		topic: p.topic,
		key:   msg.OrderingKey,
	}
}

type orderedResult struct {
	res   *gcppubsub.PublishResult
	topic *gcppubsub.Publisher
	key   string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.topic.ResumePublish(r.key)
	}
	return id, err
}
