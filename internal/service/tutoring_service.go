package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/orchestrator"
	"ai-tutor-be/pkg/tutor/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ITutoringService interface {
	CreateSession(ctx context.Context, userId string, isGuest bool, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetSessions(ctx context.Context, userId string) ([]dto.GetAllSessionsResponse, error)
	SendMessage(ctx context.Context, userId string, isGuest bool, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	ConfirmUnderstanding(ctx context.Context, userId string, isGuest bool, req *dto.ConfirmUnderstandingRequest) error
	AnswerQuiz(ctx context.Context, userId string, req *dto.AnswerQuizRequest) error
	RequestHint(ctx context.Context, userId string) error
	GetHistory(ctx context.Context, userId string, sessionId uuid.UUID) ([]dto.GetHistoryResponse, error)
	DeleteSession(ctx context.Context, userId string, sessionId uuid.UUID) error
	Disconnect(userId string)
}

type tutoringService struct {
	sessionRepo contract.TutoringSessionRepository
	messageRepo contract.TutoringMessageRepository
	contexts    *memory.ContextRepository
	manager     *orchestrator.Manager
	publisher   IPublisherService
	natsPub     *pktNats.Publisher
}

func NewTutoringService(
	sessionRepo contract.TutoringSessionRepository,
	messageRepo contract.TutoringMessageRepository,
	contexts *memory.ContextRepository,
	manager *orchestrator.Manager,
	publisher IPublisherService,
	natsPub *pktNats.Publisher,
) ITutoringService {
	return &tutoringService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		contexts:    contexts,
		manager:     manager,
		publisher:   publisher,
		natsPub:     natsPub,
	}
}

// CreateSession explicitly creates a session. The orchestrator also creates
// one lazily on the first message; this endpoint exists for clients that
// want the identifier up front.
func (s *tutoringService) CreateSession(ctx context.Context, userId string, isGuest bool, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	session := &entity.TutoringSession{
		Id:        uuid.New(),
		UserId:    userId,
		Subject:   req.Subject,
		Language:  store.LanguageEnglish,
		IsGuest:   isGuest,
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publishDomainEvent(events.NewSessionCreated(session.Id.String(), userId, isGuest))
	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *tutoringService) GetSessions(ctx context.Context, userId string) ([]dto.GetAllSessionsResponse, error) {
	sessions, err := s.sessionRepo.FindAllByUserId(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]dto.GetAllSessionsResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, dto.GetAllSessionsResponse{
			Id:        session.Id,
			Subject:   session.Subject,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	return out, nil
}

// SendMessage routes one student input into the user's orchestrator. The
// response only acknowledges acceptance; the actual reply arrives over the
// event stream.
func (s *tutoringService) SendMessage(ctx context.Context, userId string, isGuest bool, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	orch := s.orchestratorFor(userId, isGuest)

	modality := req.Modality
	if modality == "" {
		modality = store.ModalityText
	}
	input := store.StudentInput{
		Text:      req.Message,
		Modality:  modality,
		ImageRef:  req.ImageRef,
		ImageData: req.ImageData,
		Timestamp: time.Now(),
	}

	if err := orch.SendMessage(ctx, input); err != nil {
		switch err {
		case orchestrator.ErrDuplicateMessage:
			return nil, fiber.NewError(fiber.StatusTooManyRequests, "Duplicate message, please wait")
		case orchestrator.ErrTurnInFlight:
			return nil, fiber.NewError(fiber.StatusConflict, "A response is already being generated")
		case orchestrator.ErrEmptyInput:
			return nil, fiber.NewError(fiber.StatusBadRequest, "Message is empty")
		default:
			return nil, err
		}
	}

	tctx := orch.Context()
	sessionId := ""
	if tctx != nil {
		sessionId = tctx.SessionId
		s.contexts.Save(tctx)
		s.persistStudentMessage(ctx, tctx, input)
	}

	return &dto.SendMessageResponse{SessionId: sessionId, Accepted: true}, nil
}

func (s *tutoringService) ConfirmUnderstanding(ctx context.Context, userId string, isGuest bool, req *dto.ConfirmUnderstandingRequest) error {
	orch, ok := s.manager.Get(userId)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "No active tutoring session")
	}
	if err := orch.ConfirmUnderstanding(ctx); err != nil {
		switch err {
		case orchestrator.ErrNoSession:
			return fiber.NewError(fiber.StatusNotFound, "No active tutoring session")
		case orchestrator.ErrTurnInFlight:
			return fiber.NewError(fiber.StatusConflict, "A response is already being generated")
		default:
			return err
		}
	}
	return nil
}

func (s *tutoringService) AnswerQuiz(ctx context.Context, userId string, req *dto.AnswerQuizRequest) error {
	orch, ok := s.manager.Get(userId)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "No active tutoring session")
	}
	if err := orch.AnswerQuiz(req.SelectedIndex); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *tutoringService) RequestHint(ctx context.Context, userId string) error {
	orch, ok := s.manager.Get(userId)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "No active tutoring session")
	}
	if err := orch.RequestHint(ctx); err != nil {
		switch err {
		case orchestrator.ErrNoSession:
			return fiber.NewError(fiber.StatusNotFound, "No active tutoring session")
		case orchestrator.ErrNoHints:
			return fiber.NewError(fiber.StatusNotFound, "No hints available for this section")
		case orchestrator.ErrTurnInFlight:
			return fiber.NewError(fiber.StatusConflict, "A response is already being generated")
		default:
			return err
		}
	}
	return nil
}

func (s *tutoringService) GetHistory(ctx context.Context, userId string, sessionId uuid.UUID) ([]dto.GetHistoryResponse, error) {
	session, err := s.sessionRepo.FindById(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.UserId != userId {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	messages, err := s.messageRepo.FindAllBySessionId(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]dto.GetHistoryResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, dto.GetHistoryResponse{
			Id:        msg.Id,
			Sender:    msg.Sender,
			Modality:  msg.Modality,
			Content:   msg.Content,
			SectionId: msg.SectionId,
			CreatedAt: msg.CreatedAt,
		})
	}
	return out, nil
}

func (s *tutoringService) DeleteSession(ctx context.Context, userId string, sessionId uuid.UUID) error {
	session, err := s.sessionRepo.FindById(ctx, sessionId)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.UserId != userId {
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	if err := s.sessionRepo.Delete(ctx, sessionId); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.messageRepo.DeleteBySessionId(ctx, sessionId); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	s.contexts.Delete(sessionId.String())
	s.manager.Teardown(userId)
	return nil
}

// Disconnect releases the orchestrator when the client goes away.
func (s *tutoringService) Disconnect(userId string) {
	s.manager.Teardown(userId)
}

func (s *tutoringService) orchestratorFor(userId string, isGuest bool) *orchestrator.Orchestrator {
	emit := func(ev stream.Event) {
		s.publisher.PublishStreamEvent(userId, ev)
	}
	return s.manager.Init(userId, isGuest, emit)
}

func (s *tutoringService) persistStudentMessage(ctx context.Context, tctx *store.TutoringContext, input store.StudentInput) {
	sessionId, err := uuid.Parse(tctx.SessionId)
	if err != nil {
		return
	}
	msg := &entity.TutoringMessage{
		Id:                uuid.New(),
		TutoringSessionId: sessionId,
		UserId:            tctx.UserId,
		Sender:            store.SenderUser,
		Modality:          input.Modality,
		Content:           input.Text,
		ImageRef:          input.ImageRef,
		CreatedAt:         input.Timestamp,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		// The live context still holds the turn; history replay degrades.
		fmt.Printf("[WARN] Failed to persist student message: %v\n", err)
	}
}

func (s *tutoringService) publishDomainEvent(event events.Event) {
	if s.natsPub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.natsPub.Publish(ctx, event); err != nil {
			payload, _ := json.Marshal(event.Payload())
			fmt.Printf("[WARN] Failed to publish %s event: %v (payload %s)\n", event.EventType(), err, payload)
		}
	}()
}
