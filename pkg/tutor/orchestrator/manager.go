package orchestrator

import (
	"log"
	"sync"
)

// Manager owns the per-session orchestrator instances. It replaces
// process-wide singleton state with an explicitly constructed object whose
// lifecycle is tied to session start and end.
type Manager struct {
	cfg        Config
	classifier Classifier
	generator  SectionGenerator
	sessions   SessionStore
	profiles   ProfileStore
	logger     *log.Logger

	mu        sync.Mutex
	instances map[string]*Orchestrator
}

func NewManager(
	classifier Classifier,
	generator SectionGenerator,
	sessions SessionStore,
	profiles ProfileStore,
	cfg Config,
	logger *log.Logger,
) *Manager {
	return &Manager{
		cfg:        cfg,
		classifier: classifier,
		generator:  generator,
		sessions:   sessions,
		profiles:   profiles,
		logger:     logger,
		instances:  make(map[string]*Orchestrator),
	}
}

// Init returns the orchestrator for the given user key, creating it on
// first use. The emit function of the first Init wins for the lifetime of
// the instance.
func (m *Manager) Init(userId string, guest bool, emit EmitFunc) *Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.instances[userId]; ok {
		return o
	}
	o := NewOrchestrator(userId, guest, m.classifier, m.generator, m.sessions, m.profiles, emit, m.cfg, m.logger)
	m.instances[userId] = o
	return o
}

// Get returns an existing orchestrator without creating one.
func (m *Manager) Get(userId string) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.instances[userId]
	return o, ok
}

// Teardown releases the user's orchestrator and its streaming resources.
func (m *Manager) Teardown(userId string) {
	m.mu.Lock()
	o, ok := m.instances[userId]
	delete(m.instances, userId)
	m.mu.Unlock()

	if ok {
		o.Teardown()
	}
}

// Active returns the number of live orchestrator instances.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}
