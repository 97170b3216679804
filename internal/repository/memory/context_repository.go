package memory

import (
	"time"

	"ai-tutor-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// ContextRepository holds the live TutoringContext of each session. Entries
// idle for an hour are dropped; the durable record lives in Postgres.
type ContextRepository struct {
	cache *cache.Cache
}

func NewContextRepository() *ContextRepository {
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ContextRepository{
		cache: c,
	}
}

func (r *ContextRepository) Save(tctx *store.TutoringContext) {
	r.cache.Set(tctx.SessionId, tctx, cache.DefaultExpiration)
}

func (r *ContextRepository) Get(sessionId string) (*store.TutoringContext, bool) {
	if x, found := r.cache.Get(sessionId); found {
		return x.(*store.TutoringContext), true
	}
	return nil, false
}

func (r *ContextRepository) Delete(sessionId string) {
	r.cache.Delete(sessionId)
}
