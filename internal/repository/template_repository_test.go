package repository_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

func TestTemplateRepository_KeysByFileName(t *testing.T) {
	dir := t.TempDir()
	doc := `{"name":"bar","type":"email","subject":"Hi","content":"Hello {{firstName}}"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.json"), []byte(doc), 0o644))

	repo := repository.NewTemplateRepository(dir, nil)
	templates, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "foo", templates[0].Name)
	assert.Equal(t, "Hello {{firstName}}", templates[0].Content)

	require.NoError(t, repo.Delete(templates[0].Name))
	_, err = os.Stat(filepath.Join(dir, "foo.json"))
	assert.True(t, os.IsNotExist(err))

	templates, err = repository.NewTemplateRepository(dir, nil).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestTemplateRepository_SaveLoadDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	repo := repository.NewTemplateRepository(dir, nil)

	templates, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, templates)

	require.NoError(t, repo.Save(&model.Template{Name: "welcome", Type: model.ChannelEmail, Content: "Hi"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	templates, err = repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "welcome", templates[0].Name)

	assert.True(t, appErrors.IsNotFound(repo.Delete("missing")))
	require.NoError(t, repo.Delete("welcome"))
}
