package model

import (
	"time"
)

type PhaseName string

const (
	PhaseInput      PhaseName = "input"
	PhaseFillParams PhaseName = "fill_params"
	PhaseFinal      PhaseName = "final"
)

// Phase is the conversation phase together with the data that is only
// meaningful inside it. The set of implementations is closed.
type Phase interface {
	Name() PhaseName
	isPhase()
}

// InputPhase waits for the initial contract description.
type InputPhase struct{}

// FillParamsPhase waits for placeholder values. Outstanding always equals the
// distinct placeholders currently present in Draft.
type FillParamsPhase struct {
	Template    Template
	Draft       string
	Outstanding []string
}

// FinalPhase holds a fully resolved draft. ExportError is set when writing the
// document failed; the draft stays available for a retry.
type FinalPhase struct {
	Template    Template
	Draft       string
	ExportPath  string
	ExportError string
}

func (InputPhase) Name() PhaseName      { return PhaseInput }
func (FillParamsPhase) Name() PhaseName { return PhaseFillParams }
func (FinalPhase) Name() PhaseName      { return PhaseFinal }

func (InputPhase) isPhase()      {}
func (FillParamsPhase) isPhase() {}
func (FinalPhase) isPhase()      {}

type Session struct {
	ID        string
	Title     string
	Messages  []Message
	Params    map[string]string
	Phase     Phase
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSession(id, title string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Title:     title,
		Messages:  make([]Message, 0),
		Params:    make(map[string]string),
		Phase:     InputPhase{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PhaseName returns the current phase, treating a nil phase as input.
func (s *Session) PhaseName() PhaseName {
	if s.Phase == nil {
		return PhaseInput
	}
	return s.Phase.Name()
}

// Draft returns the current draft text, or "" while in the input phase.
func (s *Session) Draft() string {
	switch p := s.Phase.(type) {
	case FillParamsPhase:
		return p.Draft
	case FinalPhase:
		return p.Draft
	}
	return ""
}

// Template returns the selected template, or nil while in the input phase.
func (s *Session) Template() *Template {
	switch p := s.Phase.(type) {
	case FillParamsPhase:
		t := p.Template
		return &t
	case FinalPhase:
		t := p.Template
		return &t
	}
	return nil
}

// Outstanding returns the unresolved placeholder names.
func (s *Session) Outstanding() []string {
	if p, ok := s.Phase.(FillParamsPhase); ok {
		return append([]string(nil), p.Outstanding...)
	}
	return []string{}
}

func (s *Session) AppendMessage(msg Message) {
	msg.SessionID = s.ID
	s.Messages = append(s.Messages, msg)
}

// Reset returns the session to the input phase and clears everything collected
// so far.
func (s *Session) Reset(now time.Time) {
	s.Messages = make([]Message, 0)
	s.Params = make(map[string]string)
	s.Phase = InputPhase{}
	s.UpdatedAt = now
}

// Clone returns a deep copy. Turns are applied to a clone and stored only when
// they succeed.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append(make([]Message, 0, len(s.Messages)), s.Messages...)
	c.Params = make(map[string]string, len(s.Params))
	for k, v := range s.Params {
		c.Params[k] = v
	}
	if p, ok := s.Phase.(FillParamsPhase); ok {
		p.Outstanding = append([]string(nil), p.Outstanding...)
		c.Phase = p
	}
	return &c
}
