package service

import (
	"encoding/json"
	"log"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/pkg/tutor/stream"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IPublisherService interface {
	PublishStreamEvent(userId string, event stream.Event)
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

// PublishStreamEvent puts one client-bound event on the in-process bus.
// Delivery failures are logged, not returned: the orchestrator's turn must
// not fail because a consumer is missing.
func (ps *publisherService) PublishStreamEvent(userId string, event stream.Event) {
	payload, err := json.Marshal(dto.PublishStreamEventMessage{
		UserId: userId,
		Event:  event,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal stream event: %v", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ps.pubSub.Publish(ps.topicName, msg); err != nil {
		log.Printf("[ERROR] Failed to publish stream event: %v", err)
	}
}
