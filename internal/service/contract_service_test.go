package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"contract-assistant/internal/config"
	"contract-assistant/internal/draft"
	"contract-assistant/internal/export"
	"contract-assistant/internal/model"
	"contract-assistant/internal/retrieval"
	"contract-assistant/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var editionTemplate = model.Template{
	ID:          "edizione",
	Description: "Contratto di edizione",
	Body:        "Royalty: [Percentuale]%, Autore: [Nome Autore]",
	Link:        "https://example.com/edizione",
}

type fakeMatcher struct {
	tpl model.Template
	err error
}

func (f *fakeMatcher) FindBestTemplate(ctx context.Context, query string) (model.Template, error) {
	return f.tpl, f.err
}

type fakeGenerator struct {
	mu    sync.Mutex
	draft string
	err   error
	calls int
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, tpl model.Template, description string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.draft, f.err
}

type failingWriter struct {
	err error
}

func (f *failingWriter) Write(text string) (*model.Document, error) {
	return nil, f.err
}

type staticCatalog []model.Template

func (c staticCatalog) All() []model.Template {
	return c
}

type fixture struct {
	svc       *ContractService
	store     *storage.MemoryStorage
	matcher   *fakeMatcher
	generator *fakeGenerator
	exportDir string
}

func newFixture(t *testing.T, draftText string) *fixture {
	t.Helper()
	exportDir := filepath.Join(t.TempDir(), "contratti_generati")
	f := &fixture{
		store:     storage.NewMemoryStorage(time.Hour, time.Minute),
		matcher:   &fakeMatcher{tpl: editionTemplate},
		generator: &fakeGenerator{draft: draftText},
		exportDir: exportDir,
	}
	f.svc = NewContractService(
		f.store,
		f.matcher,
		f.generator,
		export.NewWriter(exportDir, "bozza_contratto.docx", "contratto_personalizzato.docx"),
		staticCatalog{editionTemplate},
		config.UIConfig{UserAvatar: "user_icon.png", AssistantAvatar: "assistant_icon.png"},
	)
	return f
}

func (f *fixture) start(t *testing.T) string {
	t.Helper()
	session, err := f.svc.CreateSession("")
	require.NoError(t, err)
	_, err = f.svc.SubmitRequest(context.Background(), session.ID, "Contratto con royalty al 10%", nil)
	require.NoError(t, err)
	return session.ID
}

func documentText(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, zf := range zr.File {
		if zf.Name != "word/document.xml" {
			continue
		}
		rc, err := zf.Open()
		require.NoError(t, err)
		defer rc.Close()
		xml, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(xml)
	}
	t.Fatal("word/document.xml missing")
	return ""
}

func TestSubmitRequestEntersFillParams(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	session, err := f.svc.CreateSession("")
	require.NoError(t, err)

	var stages []string
	resp, err := f.svc.SubmitRequest(context.Background(), session.ID, "Contratto di edizione", func(e model.ProgressEvent) {
		stages = append(stages, e.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseFillParams, resp.Session.Phase)
	assert.Equal(t, []string{"Percentuale", "Nome Autore"}, resp.Session.Outstanding)
	assert.Equal(t, editionTemplate.Body, resp.Session.Draft)
	require.NotNil(t, resp.Session.Template)
	assert.Equal(t, "edizione", resp.Session.Template.ID)
	assert.Equal(t, "Contratto di edizione", resp.Session.Title)
	assert.Empty(t, resp.Warnings)

	require.Len(t, resp.Messages, 2)
	assert.Equal(t, model.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "user_icon.png", resp.Messages[0].Avatar)
	assert.Equal(t, model.RoleAssistant, resp.Messages[1].Role)
	assert.True(t, strings.HasPrefix(resp.Messages[1].Content, "Ecco qua una proposta di bozza: \n\n"))
	assert.Contains(t, resp.Messages[1].Content, "- *Percentuale*\n- *Nome Autore*")
	assert.Contains(t, resp.Messages[1].HTMLContent, "<em>Percentuale</em>")

	assert.Equal(t, []string{StageMatching, StageTemplateFound, StageGenerating, StageDraftReady, StageCompleted}, stages)

	stored, err := f.svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestSubmitRequestCreatesSessionWhenIDEmpty(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)

	resp, err := f.svc.SubmitRequest(context.Background(), "", "Contratto di edizione", nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Session.SessionID)

	_, err = f.svc.GetSession(resp.Session.SessionID)
	assert.NoError(t, err)
}

func TestSubmitRequestWithoutPlaceholdersGoesFinal(t *testing.T) {
	f := newFixture(t, "Royalty: 10%, Autore: Mario Rossi")

	var stages []string
	resp, err := f.svc.SubmitRequest(context.Background(), "", "Contratto completo", func(e model.ProgressEvent) {
		stages = append(stages, e.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseFinal, resp.Session.Phase)
	assert.Empty(t, resp.Session.Outstanding)
	assert.Contains(t, resp.Messages[1].Content, "Il contratto è stato completato con successo!")
	assert.Contains(t, stages, StageExporting)

	assert.Contains(t, documentText(t, filepath.Join(f.exportDir, "bozza_contratto.docx")), "Royalty: 10%, Autore: Mario Rossi")
}

func TestSubmitRequestValidation(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)

	_, err := f.svc.SubmitRequest(context.Background(), "", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = f.svc.SubmitRequest(context.Background(), "sconosciuta", "testo", nil)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	id := f.start(t)
	_, err = f.svc.SubmitRequest(context.Background(), id, "di nuovo", nil)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestFailedTurnLeavesSessionUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "search unavailable",
			setup:   func(f *fixture) { f.matcher.err = retrieval.ErrSearchUnavailable },
			wantErr: retrieval.ErrSearchUnavailable,
		},
		{
			name:    "no template",
			setup:   func(f *fixture) { f.matcher.err = retrieval.ErrNoTemplate },
			wantErr: retrieval.ErrNoTemplate,
		},
		{
			name:    "generation unavailable",
			setup:   func(f *fixture) { f.generator.err = draft.ErrServiceUnavailable },
			wantErr: draft.ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, editionTemplate.Body)
			session, err := f.svc.CreateSession("Mio contratto")
			require.NoError(t, err)
			tt.setup(f)

			_, err = f.svc.SubmitRequest(context.Background(), session.ID, "Contratto", nil)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := f.svc.GetSession(session.ID)
			require.NoError(t, err)
			assert.Equal(t, model.PhaseInput, stored.PhaseName())
			assert.Empty(t, stored.Messages)
			assert.Equal(t, "Mio contratto", stored.Title)
		})
	}
}

func TestFailedImplicitSessionIsNotStored(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	f.generator.err = draft.ErrServiceUnavailable

	_, err := f.svc.SubmitRequest(context.Background(), "", "Contratto", nil)
	require.ErrorIs(t, err, draft.ErrServiceUnavailable)

	sessions, err := f.svc.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSubmitParamsPartialFill(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	id := f.start(t)

	resp, err := f.svc.SubmitParams(context.Background(), id, map[string]string{
		"Percentuale": "10",
		"Nome Autore": "",
	})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseFillParams, resp.Session.Phase)
	assert.Equal(t, "Royalty: 10%, Autore: [Nome Autore]", resp.Session.Draft)
	assert.Equal(t, []string{"Nome Autore"}, resp.Session.Outstanding)
	assert.Equal(t, map[string]string{"Percentuale": "10"}, resp.Session.Params)

	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Ho compilato i parametri richiesti.", resp.Messages[0].Content)
	assert.Contains(t, resp.Messages[1].Content, "Ci sono ancora alcuni parametri da compilare:\n\n- *Nome Autore*")

	_, err = os.Stat(filepath.Join(f.exportDir, "bozza_contratto.docx"))
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitParamsCompletesContract(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	id := f.start(t)

	_, err := f.svc.SubmitParams(context.Background(), id, map[string]string{"Percentuale": "10"})
	require.NoError(t, err)

	resp, err := f.svc.SubmitParams(context.Background(), id, map[string]string{
		"Nome Autore": "Mario Rossi",
		"Sconosciuto": "ignorato",
	})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseFinal, resp.Session.Phase)
	assert.Equal(t, "Royalty: 10%, Autore: Mario Rossi", resp.Session.Draft)
	assert.NotContains(t, resp.Session.Params, "Sconosciuto")
	assert.Empty(t, resp.Session.ExportError)
	assert.True(t, strings.HasPrefix(resp.Messages[1].Content, "Ecco il contratto completo:\n\n"))

	entries, err := os.ReadDir(f.exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bozza_contratto.docx", entries[0].Name())
	assert.Contains(t, documentText(t, filepath.Join(f.exportDir, "bozza_contratto.docx")), "Royalty: 10%, Autore: Mario Rossi")

	session, err := f.svc.GetSession(id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 6)

	_, err = f.svc.SubmitParams(context.Background(), id, map[string]string{"x": "y"})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestSubmitParamsKeepsValueVerbatim(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	id := f.start(t)

	resp, err := f.svc.SubmitParams(context.Background(), id, map[string]string{
		"Percentuale": " 10 ",
		"Nome Autore": "   ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseFillParams, resp.Session.Phase)
	assert.Equal(t, "Royalty:  10 %, Autore: [Nome Autore]", resp.Session.Draft)
	assert.Equal(t, []string{"Nome Autore"}, resp.Session.Outstanding)
	assert.Equal(t, map[string]string{"Percentuale": " 10 "}, resp.Session.Params)
}

func TestSubmitParamsWrongPhase(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	session, err := f.svc.CreateSession("")
	require.NoError(t, err)

	_, err = f.svc.SubmitParams(context.Background(), session.ID, map[string]string{"Percentuale": "10"})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestValueWithBracketsStaysOutstanding(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	id := f.start(t)

	resp, err := f.svc.SubmitParams(context.Background(), id, map[string]string{
		"Percentuale": "10",
		"Nome Autore": "[Pseudonimo]",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFillParams, resp.Session.Phase)
	assert.Equal(t, []string{"Pseudonimo"}, resp.Session.Outstanding)
}

func TestMalformedDraftWarns(t *testing.T) {
	f := newFixture(t, "Autore: [Nome Autore, Titolo: [Titolo]")

	resp, err := f.svc.SubmitRequest(context.Background(), "", "Contratto", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{malformedWarning}, resp.Warnings)
	assert.Contains(t, resp.Messages[1].Content, malformedWarning)
}

func TestExportFailureIsRecorded(t *testing.T) {
	f := newFixture(t, "Contratto senza segnaposto")
	writer := &failingWriter{err: export.ErrExport}
	f.svc.writer = writer

	resp, err := f.svc.SubmitRequest(context.Background(), "", "Contratto", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFinal, resp.Session.Phase)
	assert.NotEmpty(t, resp.Session.ExportError)
	assert.Contains(t, resp.Warnings, exportWarning)

	id := resp.Session.SessionID
	_, err = f.svc.Download(context.Background(), id)
	assert.ErrorIs(t, err, export.ErrExport)

	f.svc.writer = export.NewWriter(f.exportDir, "bozza_contratto.docx", "contratto_personalizzato.docx")
	doc, err := f.svc.Download(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "contratto_personalizzato.docx", doc.FileName)
	assert.NotEmpty(t, doc.Data)

	session, err := f.svc.GetSession(id)
	require.NoError(t, err)
	phase, ok := session.Phase.(model.FinalPhase)
	require.True(t, ok)
	assert.Empty(t, phase.ExportError)
	assert.Equal(t, doc.Path, phase.ExportPath)
}

func TestDownloadRequiresFinal(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	id := f.start(t)

	_, err := f.svc.Download(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestResetFromEveryPhase(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)

	input, err := f.svc.CreateSession("")
	require.NoError(t, err)

	fill := f.start(t)

	final := f.start(t)
	_, err = f.svc.SubmitParams(context.Background(), final, map[string]string{"Percentuale": "10", "Nome Autore": "Mario"})
	require.NoError(t, err)

	for _, id := range []string{input.ID, fill, final} {
		session, err := f.svc.Reset(id)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseInput, session.PhaseName())
		assert.Empty(t, session.Messages)
		assert.Empty(t, session.Params)
		assert.Nil(t, session.Template())
		assert.Empty(t, session.Draft())
	}

	_, err = f.svc.SubmitRequest(context.Background(), final, "Nuova richiesta", nil)
	assert.NoError(t, err)

	_, err = f.svc.Reset("sconosciuta")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestConcurrentRequestsOnSameSession(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	f.generator.delay = 10 * time.Millisecond
	session, err := f.svc.CreateSession("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitRequest(context.Background(), session.ID, "Contratto", nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidPhase))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.generator.calls)

	stored, err := f.svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestSessionManagement(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)

	a, err := f.svc.CreateSession("Primo")
	require.NoError(t, err)
	b, err := f.svc.CreateSession("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.Title, defaultTitlePrefix))

	renamed, err := f.svc.UpdateSessionTitle(a.ID, "Rinominato")
	require.NoError(t, err)
	assert.Equal(t, "Rinominato", renamed.Title)

	sessions, err := f.svc.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, a.ID, sessions[0].ID)

	require.NoError(t, f.svc.DeleteSession(b.ID))
	assert.ErrorIs(t, f.svc.DeleteSession(b.ID), storage.ErrSessionNotFound)

	messages, err := f.svc.GetSessionMessages(a.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	require.NoError(t, f.svc.ClearAllSessions())
	sessions, err = f.svc.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	templates := f.svc.ListTemplates()
	require.Len(t, templates, 1)
	assert.Equal(t, "Contratto di edizione", templates[0].Description)
}

func TestTitleTruncation(t *testing.T) {
	f := newFixture(t, editionTemplate.Body)
	long := strings.Repeat("à", 40)

	resp, err := f.svc.SubmitRequest(context.Background(), "", long, nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("à", 30)+"...", resp.Session.Title)
}

func TestTemplateReference(t *testing.T) {
	assert.Equal(t, "**Template più simile trovato:** [Contratto di edizione](https://example.com/edizione)", TemplateReference(&editionTemplate))
	assert.Equal(t, "**Template più simile trovato:** Senza link", TemplateReference(&model.Template{Description: "Senza link"}))
	assert.Empty(t, TemplateReference(nil))
}
