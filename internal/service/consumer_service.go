package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	internalWS "ai-tutor-be/internal/websocket"
	"ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/stream"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process stream topic, delivers each event
// to the user's websocket connections, and persists the AI side of the
// conversation once a turn reaches its terminal event.
type consumerService struct {
	pubSub      *gochannel.GoChannel
	topicName   string
	hub         *internalWS.Hub
	messageRepo contract.TutoringMessageRepository
	natsPub     *pktNats.Publisher

	mu      sync.Mutex
	partial map[string]*strings.Builder // sessionId -> accumulated token text
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *internalWS.Hub,
	messageRepo contract.TutoringMessageRepository,
	natsPub *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		hub:         hub,
		messageRepo: messageRepo,
		natsPub:     natsPub,
		partial:     make(map[string]*strings.Builder),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishStreamEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal stream message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	userId, err := uuid.Parse(payload.UserId)
	if err != nil {
		log.Printf("[ERROR] Invalid user id on stream message: %q", payload.UserId)
		msg.Ack()
		return
	}

	event := payload.Event
	cs.hub.SendEvent(userId, event)
	cs.track(event)

	if event.IsTerminal() {
		cs.finishTurn(ctx, payload.UserId, event)
		// Transport-level terminator, written after the terminal event so
		// clients relying on either signal see a closed stream.
		cs.hub.SendRaw(userId, []byte(stream.DoneSentinel))
	}

	msg.Ack()
}

// track accumulates token text so an interrupted turn can still be saved.
func (cs *consumerService) track(event stream.Event) {
	if event.Type != stream.EventToken || event.Token == nil {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	b, ok := cs.partial[event.SessionId]
	if !ok {
		b = &strings.Builder{}
		cs.partial[event.SessionId] = b
	}
	b.WriteString(event.Token.Token)
}

func (cs *consumerService) finishTurn(ctx context.Context, userId string, event stream.Event) {
	cs.mu.Lock()
	accumulated := ""
	if b, ok := cs.partial[event.SessionId]; ok {
		accumulated = b.String()
	}
	delete(cs.partial, event.SessionId)
	cs.mu.Unlock()

	sessionId, err := uuid.Parse(event.SessionId)
	if err != nil {
		// Terminal events before session creation carry no session id.
		return
	}

	record := &entity.TutoringMessage{
		Id:                uuid.New(),
		TutoringSessionId: sessionId,
		UserId:            userId,
		Sender:            store.SenderAI,
		Modality:          store.ModalityText,
		CreatedAt:         time.Now(),
	}

	switch event.Type {
	case stream.EventFinal:
		if event.Final != nil && event.Final.Section != nil {
			record.Content = event.Final.Section.Content
			record.SectionId = event.Final.Section.Id
			record.SectionType = event.Final.Section.Type
		} else {
			record.Content = accumulated
		}
		cs.publishDomainEvent(event, userId)
	case stream.EventError:
		if strings.TrimSpace(accumulated) == "" {
			return
		}
		record.Content = accumulated + " (interrupted)"
	}

	if strings.TrimSpace(record.Content) == "" {
		return
	}

	pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := cs.messageRepo.Create(pctx, record); err != nil {
		log.Printf("[ERROR] Failed to persist AI message for session %s: %v", event.SessionId, err)
	}
}

func (cs *consumerService) publishDomainEvent(event stream.Event, userId string) {
	if cs.natsPub == nil || event.Final == nil {
		return
	}
	sectionType := ""
	if event.Final.Section != nil {
		sectionType = event.Final.Section.Type
	}
	evt := events.NewTurnCompleted(event.SessionId, sectionType, event.Final.Performance.LatencyMs, false)

	nctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := cs.natsPub.Publish(nctx, evt); err != nil {
		log.Printf("[WARN] Failed to publish turn completed event for user %s: %v", userId, err)
	}
}
