// internal/repository/template_repository.go
package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type TemplateRepositoryInterface interface {
	LoadAll() ([]*model.Template, error)
	Save(t *model.Template) error
	Delete(name string) error
	WriteExport(path string, doc *model.TemplateExport) error
	ReadExport(path string) (*model.TemplateExport, error)
}

// TemplateRepository keeps one JSON document per template, named <name>.json.
type TemplateRepository struct {
	Dir string
	Log *logger.Logger
}

func NewTemplateRepository(dir string, log *logger.Logger) *TemplateRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &TemplateRepository{Dir: dir, Log: log.WithComponent("templates")}
}

func (r *TemplateRepository) path(name string) string {
	return filepath.Join(r.Dir, name+".json")
}

// LoadAll reads every template document in Dir, creating Dir if needed.
// A document that cannot be decoded is logged and skipped. Templates are keyed
// by file name, so Save and Delete always address the file that was loaded.
func (r *TemplateRepository) LoadAll() ([]*model.Template, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, appErrors.NewPersistence("create templates dir", err)
	}
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, appErrors.NewPersistence("list templates", err)
	}

	templates := []*model.Template{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(r.Dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, appErrors.NewPersistence("read template", err)
		}
		var t model.Template
		if err := json.Unmarshal(data, &t); err != nil {
			r.Log.Warn().Err(err).Str("path", path).Msg("skipping unreadable template")
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		if t.Name != "" && t.Name != stem {
			r.Log.Warn().Str("path", path).Str("name", t.Name).Msg("template name does not match file name, using file name")
		}
		t.Name = stem
		templates = append(templates, &t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })

	r.Log.Info().Int("count", len(templates)).Str("dir", r.Dir).Msg("loaded templates")
	return templates, nil
}

func (r *TemplateRepository) Save(t *model.Template) error {
	if err := writeJSONAtomic(r.path(t.Name), t); err != nil {
		return appErrors.NewPersistence("save template", err)
	}
	return nil
}

func (r *TemplateRepository) Delete(name string) error {
	if err := os.Remove(r.path(name)); err != nil {
		if os.IsNotExist(err) {
			return appErrors.NewNotFound("template", name)
		}
		return appErrors.NewPersistence("delete template", err)
	}
	return nil
}

// WriteExport writes a bulk export document to path.
func (r *TemplateRepository) WriteExport(path string, doc *model.TemplateExport) error {
	if err := writeJSONAtomic(path, doc); err != nil {
		return appErrors.NewPersistence("write template export", err)
	}
	return nil
}

// ReadExport reads a bulk export document written by WriteExport.
func (r *TemplateRepository) ReadExport(path string) (*model.TemplateExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.NewNotFound("template export", path)
		}
		return nil, appErrors.NewPersistence("read template export", err)
	}
	var doc model.TemplateExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &appErrors.ParseError{Path: path, Err: err}
	}
	return &doc, nil
}
