package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// sessionStoreAdapter backs the orchestrator's lazy session creation with
// the database and announces new sessions on the event bus.
type sessionStoreAdapter struct {
	repo    contract.TutoringSessionRepository
	natsPub *pktNats.Publisher
}

func NewSessionStoreAdapter(repo contract.TutoringSessionRepository, natsPub *pktNats.Publisher) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo, natsPub: natsPub}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, userId, subject string, guest bool) (string, error) {
	session := &entity.TutoringSession{
		Id:        uuid.New(),
		UserId:    userId,
		Subject:   subject,
		Language:  store.LanguageEnglish,
		IsGuest:   guest,
		CreatedAt: time.Now(),
	}
	if err := a.repo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	if a.natsPub != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.natsPub.Publish(nctx, events.NewSessionCreated(session.Id.String(), userId, guest)); err != nil {
				log.Printf("[WARN] Failed to publish session created event: %v", err)
			}
		}()
	}
	return session.Id.String(), nil
}

// profileStoreAdapter persists elicited student profiles and announces
// updates on the event bus.
type profileStoreAdapter struct {
	repo    contract.StudentProfileRepository
	natsPub *pktNats.Publisher
}

func NewProfileStoreAdapter(repo contract.StudentProfileRepository, natsPub *pktNats.Publisher) *profileStoreAdapter {
	return &profileStoreAdapter{repo: repo, natsPub: natsPub}
}

func (a *profileStoreAdapter) Persist(ctx context.Context, userId string, profile store.StudentProfile) error {
	subjects, err := json.Marshal(profile.Subjects)
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}

	now := time.Now()
	record := &entity.StudentProfile{
		UserId:        userId,
		Name:          profile.Name,
		Role:          profile.Role,
		Grade:         profile.Grade,
		Board:         profile.Board,
		Subjects:      datatypes.JSON(subjects),
		LearningStyle: profile.LearningStyle,
		Pace:          profile.Pace,
		Location:      profile.Location,
		Credential:    profile.Credential,
		Finalized:     profile.Finalized,
		CreatedAt:     now,
		UpdatedAt:     &now,
	}
	if err := a.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if a.natsPub != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.natsPub.Publish(nctx, events.NewProfileUpdated(userId, profile.Finalized)); err != nil {
				log.Printf("[WARN] Failed to publish profile updated event: %v", err)
			}
		}()
	}
	return nil
}
