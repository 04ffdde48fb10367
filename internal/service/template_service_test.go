package service_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

func newTestTemplateService(t *testing.T, dir string) *service.TemplateService {
	t.Helper()
	s := service.NewTemplateService(repository.NewTemplateRepository(dir, nil), newTestCustomizer(), nil)
	s.Now = func() time.Time { return fixedNow }
	require.NoError(t, s.Load())
	return s
}

func TestTemplateService_SaveExtractsVariables(t *testing.T) {
	s := newTestTemplateService(t, t.TempDir())

	tpl, err := s.Save(service.TemplateInput{
		Name:    "welcome",
		Subject: "{{company}} news for {{firstName}}",
		Content: "Hi {{firstName}}, greetings from {{city}}",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ChannelEmail, tpl.Type)
	if diff := cmp.Diff([]string{"firstName", "city", "company"}, tpl.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, fixedNow, tpl.CreatedAt)
}

func TestTemplateService_Validation(t *testing.T) {
	s := newTestTemplateService(t, t.TempDir())

	tests := []struct {
		name string
		in   service.TemplateInput
		want string
	}{
		{"missing name", service.TemplateInput{Content: "x", Subject: "s"}, "Template name is required"},
		{"bad name", service.TemplateInput{Name: "bad name", Content: "x", Subject: "s"}, "Template name can only contain letters, numbers, underscores, and hyphens"},
		{"bad type", service.TemplateInput{Name: "t", Type: "fax", Content: "x"}, "Template type must be email or sms"},
		{"no content", service.TemplateInput{Name: "t", Type: model.ChannelSMS, Content: "  "}, "Template content is required"},
		{"email without subject", service.TemplateInput{Name: "t", Content: "x"}, "Email templates require a subject"},
		{"bad placeholder", service.TemplateInput{Name: "t", Type: model.ChannelSMS, Content: "Hi {{first name}}"}, "Invalid variable syntax: {{first name}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(tt.in)
			var ve *appErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, []string{tt.want}, ve.Violations)
		})
	}
	assert.Empty(t, s.List())
}

func TestTemplateService_Preview(t *testing.T) {
	s := newTestTemplateService(t, t.TempDir())
	_, err := s.Save(service.TemplateInput{Name: "welcome", Subject: "Welcome {{firstName}}!", Content: "Hi {{firstName}}, thanks!"})
	require.NoError(t, err)

	p, err := s.Preview("welcome", contact(map[string]string{"name": "John Doe"}))
	require.NoError(t, err)
	assert.Equal(t, "Welcome John!", p.PersonalizedSubject)
	assert.Equal(t, "Hi John, thanks!", p.PersonalizedContent)
	assert.Equal(t, "Welcome {{firstName}}!", p.OriginalSubject)

	sample, err := s.Preview("welcome", nil)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", sample.SampleContact.Name())

	_, err = s.Preview("nope", nil)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTemplateService_ReloadKeepsCreatedAt(t *testing.T) {
	dir := t.TempDir()
	s := newTestTemplateService(t, dir)
	_, err := s.Save(service.TemplateInput{Name: "reminder", Type: model.ChannelSMS, Content: "See you {{firstName}}"})
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	s.Now = func() time.Time { return later }
	updated, err := s.Save(service.TemplateInput{Name: "reminder", Type: model.ChannelSMS, Content: "See you soon {{firstName}}"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)

	reloaded := newTestTemplateService(t, dir)
	got, ok := reloaded.Get("reminder")
	require.True(t, ok)
	assert.Equal(t, "See you soon {{firstName}}", got.Content)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
}

func TestTemplateService_ExportImport(t *testing.T) {
	src := newTestTemplateService(t, t.TempDir())
	n, err := src.SeedDefaults()
	require.NoError(t, err)
	require.Equal(t, len(service.DefaultTemplates()), n)

	exportPath := filepath.Join(t.TempDir(), "export.json")
	written, err := src.Export(exportPath)
	require.NoError(t, err)
	assert.Equal(t, n, written)

	dst := newTestTemplateService(t, t.TempDir())
	res, err := dst.Import(exportPath)
	require.NoError(t, err)
	assert.Equal(t, n, res.Imported)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Errors)

	for _, in := range service.DefaultTemplates() {
		got, ok := dst.Get(in.Name)
		require.True(t, ok, in.Name)
		assert.Equal(t, in.Type, got.Type)
		assert.Equal(t, in.Subject, got.Subject)
		assert.Equal(t, in.Content, got.Content)
	}

	again, err := dst.Import(exportPath)
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, n, again.Skipped)

	_, err = dst.Import(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTemplateService_Delete(t *testing.T) {
	dir := t.TempDir()
	s := newTestTemplateService(t, dir)
	_, err := s.Save(service.TemplateInput{Name: "gone", Type: model.ChannelSMS, Content: "bye"})
	require.NoError(t, err)

	require.NoError(t, s.Delete("gone"))
	_, ok := s.Get("gone")
	assert.False(t, ok)
	assert.True(t, appErrors.IsNotFound(s.Delete("gone")))

	reloaded := newTestTemplateService(t, dir)
	assert.Empty(t, reloaded.List())
}

func TestTemplateService_SeedDefaultsOnlyWhenEmpty(t *testing.T) {
	s := newTestTemplateService(t, t.TempDir())
	_, err := s.Save(service.TemplateInput{Name: "mine", Type: model.ChannelSMS, Content: "hello"})
	require.NoError(t, err)

	n, err := s.SeedDefaults()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.List(), 1)
}
