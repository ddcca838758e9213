package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contract-assistant/internal/config"
	"contract-assistant/internal/model"
	"contract-assistant/internal/placeholder"
	"contract-assistant/internal/storage"
	"contract-assistant/internal/utils"
	"contract-assistant/pkg/logger"

	"github.com/google/uuid"
)

type TemplateMatcher interface {
	FindBestTemplate(ctx context.Context, query string) (model.Template, error)
}

type DraftGenerator interface {
	Generate(ctx context.Context, tpl model.Template, description string) (string, error)
}

type DocumentWriter interface {
	Write(text string) (*model.Document, error)
}

type TemplateCatalog interface {
	All() []model.Template
}

// ProgressFunc receives pipeline stages while a request is processed. It may
// be nil.
type ProgressFunc func(event model.ProgressEvent)

const (
	StageMatching      = "matching"
	StageTemplateFound = "template_found"
	StageGenerating    = "generating"
	StageDraftReady    = "draft_ready"
	StageExporting     = "exporting"
	StageCompleted     = "completed"
)

// ContractService drives the drafting conversation: input → fill_params →
// final, with reset back to input from anywhere.
type ContractService struct {
	storage   storage.Storage
	matcher   TemplateMatcher
	generator DraftGenerator
	writer    DocumentWriter
	catalog   TemplateCatalog
	ui        config.UIConfig
	locks     *sessionLocks
	now       func() time.Time
}

func NewContractService(store storage.Storage, matcher TemplateMatcher, generator DraftGenerator, writer DocumentWriter, catalog TemplateCatalog, ui config.UIConfig) *ContractService {
	return &ContractService{
		storage:   store,
		matcher:   matcher,
		generator: generator,
		writer:    writer,
		catalog:   catalog,
		ui:        ui,
		locks:     newSessionLocks(),
		now:       time.Now,
	}
}

func (s *ContractService) ListTemplates() []model.TemplateResponse {
	all := s.catalog.All()
	result := make([]model.TemplateResponse, 0, len(all))
	for i := range all {
		result = append(result, *model.NewTemplateResponse(&all[i]))
	}
	return result
}

func (s *ContractService) CreateSession(title string) (*model.Session, error) {
	session := s.newSession(title)
	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Infof("Session %s created", session.ID)
	return session, nil
}

func (s *ContractService) newSession(title string) *model.Session {
	now := s.now()
	if title == "" {
		title = defaultTitlePrefix + " " + now.Format("2006-01-02 15:04")
	}
	return model.NewSession(uuid.New().String(), title, now)
}

func (s *ContractService) GetSession(sessionID string) (*model.Session, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		return nil, s.wrapStorageError(sessionID, err)
	}
	return session, nil
}

func (s *ContractService) GetSessionMessages(sessionID string) ([]model.Message, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// ListSessions returns sessions most recently updated first.
func (s *ContractService) ListSessions() ([]*model.Session, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *ContractService) UpdateSessionTitle(sessionID, title string) (*model.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	session.Title = title
	session.UpdatedAt = s.now()
	if err := s.storage.UpdateSession(session); err != nil {
		return nil, s.wrapStorageError(sessionID, err)
	}
	return session, nil
}

func (s *ContractService) DeleteSession(sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := s.storage.DeleteSession(sessionID); err != nil {
		return s.wrapStorageError(sessionID, err)
	}

	logger.Infof("Session %s deleted", sessionID)
	return nil
}

func (s *ContractService) ClearAllSessions() error {
	if err := s.storage.ClearSessions(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	logger.Info("All sessions cleared")
	return nil
}

// SubmitRequest handles the initial description. It finds the closest
// template, drafts the contract and moves to fill_params, or straight to final
// when the draft has nothing left to fill. An empty sessionID opens a new
// session, which is stored only if the turn succeeds.
func (s *ContractService) SubmitRequest(ctx context.Context, sessionID, description string, progress ProgressFunc) (*model.TurnResponse, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	isNew := sessionID == ""
	var work *model.Session
	if isNew {
		work = s.newSession("")
		sessionID = work.ID
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	if !isNew {
		session, err := s.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		work = session.Clone()
	}

	if phase := work.PhaseName(); phase != model.PhaseInput {
		return nil, fmt.Errorf("%w: cannot submit a request in phase %s", ErrInvalidPhase, phase)
	}

	log := logger.WithFields(map[string]interface{}{"session_id": sessionID})
	start := s.now()

	if len(work.Messages) == 0 && strings.HasPrefix(work.Title, defaultTitlePrefix) {
		work.Title = truncateString(description, 30)
	}
	firstNew := len(work.Messages)
	work.AppendMessage(s.newMessage(model.RoleUser, description))

	emit(progress, StageMatching, "Ricerca del template più adatto", nil)
	tpl, err := s.matcher.FindBestTemplate(ctx, description)
	if err != nil {
		log.Warnf("Template search failed: %v", err)
		return nil, fmt.Errorf("find template: %w", err)
	}
	emit(progress, StageTemplateFound, TemplateReference(&tpl), map[string]interface{}{
		"template_id": tpl.ID,
		"description": tpl.Description,
		"link":        tpl.Link,
	})

	emit(progress, StageGenerating, "Generazione della bozza", nil)
	draft, err := s.generator.Generate(ctx, tpl, description)
	if err != nil {
		log.Warnf("Draft generation failed: %v", err)
		return nil, fmt.Errorf("generate draft: %w", err)
	}

	missing := placeholder.Extract(draft)
	emit(progress, StageDraftReady, "Bozza pronta", map[string]interface{}{
		"outstanding": missing,
	})

	var warnings []string
	if placeholder.Unbalanced(draft) {
		warnings = append(warnings, malformedWarning)
	}

	var content string
	if len(missing) > 0 {
		work.Phase = model.FillParamsPhase{Template: tpl, Draft: draft, Outstanding: missing}
		content = proposalMessage(draft, missing)
	} else {
		if exportWarn := s.finalize(work, tpl, draft, progress); exportWarn != "" {
			warnings = append(warnings, exportWarn)
		}
		content = proposalMessage(draft, nil) + completionText
	}
	work.AppendMessage(s.newMessage(model.RoleAssistant, withWarnings(content, warnings)))
	work.UpdatedAt = s.now()

	if isNew {
		err = s.storage.CreateSession(work)
	} else {
		err = s.storage.UpdateSession(work)
	}
	if err != nil {
		return nil, s.wrapStorageError(sessionID, err)
	}

	emit(progress, StageCompleted, "Richiesta elaborata", nil)
	log.WithField("template_id", tpl.ID).
		WithField("phase", work.PhaseName()).
		WithField("outstanding", len(missing)).
		Infof("Request processed in %s", s.now().Sub(start).Round(time.Millisecond))

	return s.turnResponse(work, firstNew, warnings), nil
}

// SubmitParams applies user values to the outstanding placeholders. Values for
// names that are not outstanding are ignored and empty values leave the
// placeholder unresolved.
func (s *ContractService) SubmitParams(ctx context.Context, sessionID string, values map[string]string) (*model.TurnResponse, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	work := session.Clone()

	phase, ok := work.Phase.(model.FillParamsPhase)
	if !ok {
		return nil, fmt.Errorf("%w: cannot submit parameters in phase %s", ErrInvalidPhase, work.PhaseName())
	}

	accepted := make(map[string]string, len(phase.Outstanding))
	for _, name := range phase.Outstanding {
		if v := values[name]; strings.TrimSpace(v) != "" {
			accepted[name] = v
			work.Params[name] = v
		}
	}

	updated := placeholder.Substitute(phase.Draft, accepted)
	remaining := placeholder.Extract(updated)

	firstNew := len(work.Messages)
	work.AppendMessage(s.newMessage(model.RoleUser, paramsFilledText))

	var warnings []string
	if placeholder.Unbalanced(updated) {
		warnings = append(warnings, malformedWarning)
	}

	var content string
	if len(remaining) > 0 {
		work.Phase = model.FillParamsPhase{Template: phase.Template, Draft: updated, Outstanding: remaining}
		content = updatedMessage(updated, remaining)
	} else {
		if exportWarn := s.finalize(work, phase.Template, updated, nil); exportWarn != "" {
			warnings = append(warnings, exportWarn)
		}
		content = completedMessage(updated)
	}
	work.AppendMessage(s.newMessage(model.RoleAssistant, withWarnings(content, warnings)))
	work.UpdatedAt = s.now()

	if err := s.storage.UpdateSession(work); err != nil {
		return nil, s.wrapStorageError(sessionID, err)
	}

	logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"filled":     len(accepted),
		"remaining":  len(remaining),
	}).Info("Parameters applied")

	return s.turnResponse(work, firstNew, warnings), nil
}

// Reset returns the session to input and empties its log.
func (s *ContractService) Reset(sessionID string) (*model.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	session.Reset(s.now())
	if err := s.storage.UpdateSession(session); err != nil {
		return nil, s.wrapStorageError(sessionID, err)
	}

	logger.Infof("Session %s reset", sessionID)
	return session, nil
}

// Download rewrites the final draft and returns the document. A previous
// export failure is cleared when the retry succeeds.
func (s *ContractService) Download(ctx context.Context, sessionID string) (*model.Document, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	phase, ok := session.Phase.(model.FinalPhase)
	if !ok {
		return nil, fmt.Errorf("%w: nothing to download in phase %s", ErrInvalidPhase, session.PhaseName())
	}

	doc, err := s.writer.Write(phase.Draft)
	if err != nil {
		logger.Errorf("Export for session %s failed: %v", sessionID, err)
		return nil, err
	}

	if phase.ExportError != "" || phase.ExportPath != doc.Path {
		phase.ExportError = ""
		phase.ExportPath = doc.Path
		session.Phase = phase
		session.UpdatedAt = s.now()
		if err := s.storage.UpdateSession(session); err != nil {
			logger.Warnf("Failed to record export for session %s: %v", sessionID, err)
		}
	}
	return doc, nil
}

// finalize moves work to final and writes the document. It returns a warning
// when the export failed.
func (s *ContractService) finalize(work *model.Session, tpl model.Template, draft string, progress ProgressFunc) string {
	emit(progress, StageExporting, "Generazione del documento Word", nil)

	final := model.FinalPhase{Template: tpl, Draft: draft}
	doc, err := s.writer.Write(draft)
	if err != nil {
		logger.Errorf("Export for session %s failed: %v", work.ID, err)
		final.ExportError = err.Error()
		work.Phase = final
		return exportWarning
	}

	final.ExportPath = doc.Path
	work.Phase = final
	return ""
}

func (s *ContractService) newMessage(role, content string) model.Message {
	msg := model.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}

	switch role {
	case model.RoleUser:
		msg.Avatar = s.ui.UserAvatar
	case model.RoleAssistant:
		msg.Avatar = s.ui.AssistantAvatar
		html, err := utils.RenderMarkdown(content)
		if err != nil {
			logger.Warnf("Failed to render message markdown: %v", err)
		} else {
			msg.HTMLContent = html
		}
	}
	return msg
}

func (s *ContractService) turnResponse(session *model.Session, firstNew int, warnings []string) *model.TurnResponse {
	added := append([]model.Message(nil), session.Messages[firstNew:]...)
	return &model.TurnResponse{
		Session:  model.NewSessionResponse(session),
		Messages: added,
		Warnings: warnings,
	}
}

func (s *ContractService) wrapStorageError(sessionID string, err error) error {
	if errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("%w: %s", storage.ErrSessionNotFound, sessionID)
	}
	return fmt.Errorf("storage error for session %s: %w", sessionID, err)
}

func emit(progress ProgressFunc, stage, message string, data map[string]interface{}) {
	if progress == nil {
		return
	}
	progress(model.ProgressEvent{
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

func truncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
