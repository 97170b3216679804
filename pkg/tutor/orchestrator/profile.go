package orchestrator

import (
	"context"
	"strings"
	"time"

	"ai-tutor-be/pkg/store"
)

const (
	profilePersistTimeout = 5 * time.Second

	RoleStudent = "student"
)

// profileField is one step of the elicitation sequence.
type profileField struct {
	name   string
	prompt string
	// skip reports whether this field does not apply to the profile
	// (role-conditional fields).
	skip    func(p *store.StudentProfile) bool
	present func(p *store.StudentProfile) bool
	apply   func(p *store.StudentProfile, answer string)
}

// profileSequence is the fixed elicitation order, one field per
// confirmation. Fields already present are skipped.
var profileSequence = []profileField{
	{
		name:    "name",
		prompt:  "By the way, what should I call you?",
		present: func(p *store.StudentProfile) bool { return p.Name != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Name = a },
	},
	{
		name:    "role",
		prompt:  "Are you a student, a parent, or a teacher?",
		present: func(p *store.StudentProfile) bool { return p.Role != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Role = strings.ToLower(a) },
	},
	{
		name:    "grade",
		prompt:  "Which grade are you in?",
		skip:    func(p *store.StudentProfile) bool { return p.Role != RoleStudent },
		present: func(p *store.StudentProfile) bool { return p.Grade != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Grade = a },
	},
	{
		name:    "board",
		prompt:  "Which board does your school follow (CBSE, ICSE, state board)?",
		present: func(p *store.StudentProfile) bool { return p.Board != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Board = a },
	},
	{
		name:    "subjects",
		prompt:  "Which subjects would you like help with? You can list a few.",
		present: func(p *store.StudentProfile) bool { return len(p.Subjects) > 0 },
		apply: func(p *store.StudentProfile, a string) {
			for _, s := range strings.Split(a, ",") {
				if s = strings.TrimSpace(s); s != "" {
					p.Subjects = append(p.Subjects, s)
				}
			}
		},
	},
	{
		name:    "learning_style",
		prompt:  "How do you learn best: examples, explanations, or practice problems?",
		present: func(p *store.StudentProfile) bool { return p.LearningStyle != "" },
		apply:   func(p *store.StudentProfile, a string) { p.LearningStyle = a },
	},
	{
		name:    "pace",
		prompt:  "Do you prefer a quick pace or taking things slowly?",
		present: func(p *store.StudentProfile) bool { return p.Pace != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Pace = a },
	},
	{
		name:    "location",
		prompt:  "Which city are you in?",
		present: func(p *store.StudentProfile) bool { return p.Location != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Location = a },
	},
	{
		name:    "credential",
		prompt:  "Lastly, share an email or phone number so your progress is saved.",
		present: func(p *store.StudentProfile) bool { return p.Credential != "" },
		apply:   func(p *store.StudentProfile, a string) { p.Credential = a },
	},
}

// advanceProfileLocked moves the elicitation sequence forward by one step:
// ask the next missing applicable field, or finalize when everything
// required is present. Re-entering with a populated field is a no-op that
// advances. Caller holds the lock.
func (o *Orchestrator) advanceProfileLocked() {
	o.tctx.ConfirmCount++
	if o.tctx.Profile == nil {
		o.tctx.Profile = &store.StudentProfile{}
	}
	p := o.tctx.Profile

	next := nextMissingField(p)
	if next == nil {
		o.finalizeProfileLocked(p)
		return
	}

	o.pendingField = next.name
	o.tctx.State = store.StateAwaitingProfile
	o.emitMessageLocked(next.prompt, "answer_profile")
}

func (o *Orchestrator) finalizeProfileLocked(p *store.StudentProfile) {
	if !p.Finalized {
		p.Finalized = true
		o.persistProfileAsync(*p)
		o.emitMessageLocked("Your profile is all set. Let's keep learning!", "confirm_understanding")
		return
	}
	o.emitMessageLocked("Great, let's keep going!", "confirm_understanding")
}

// handleProfileAnswer merges one answer into the locally held profile and
// persists it fire-and-forget. An answer for an already-populated field
// changes nothing.
func (o *Orchestrator) handleProfileAnswer(input store.StudentInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.appendStudentMessageLocked(input)

	field := fieldByName(o.pendingField)
	o.pendingField = ""
	o.tctx.State = store.StateIdle

	if field == nil {
		return nil
	}
	if o.tctx.Profile == nil {
		o.tctx.Profile = &store.StudentProfile{}
	}
	p := o.tctx.Profile

	if !field.present(p) {
		answer := strings.TrimSpace(input.Text)
		if answer == "" {
			return nil
		}
		field.apply(p, answer)
		o.persistProfileAsync(*p)
	}

	o.emitMessageLocked("Got it, thanks!", "confirm_understanding")
	return nil
}

// persistProfileAsync writes the profile to the storage collaborator in the
// background. The local copy remains the source of truth between calls.
func (o *Orchestrator) persistProfileAsync(p store.StudentProfile) {
	userId := o.userId
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), profilePersistTimeout)
		defer cancel()
		if err := o.profiles.Persist(ctx, userId, p); err != nil {
			o.logger.Printf("[ORCH] Profile persist failed for user %s: %v", userId, err)
		}
	}()
}

func nextMissingField(p *store.StudentProfile) *profileField {
	for i := range profileSequence {
		f := &profileSequence[i]
		if f.skip != nil && f.skip(p) {
			continue
		}
		if !f.present(p) {
			return f
		}
	}
	return nil
}

func fieldByName(name string) *profileField {
	for i := range profileSequence {
		if profileSequence[i].name == name {
			return &profileSequence[i]
		}
	}
	return nil
}
