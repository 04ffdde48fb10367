// internal/repository/contact_repository.go
package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type ContactRepositoryInterface interface {
	Load(path string) ([]model.Contact, error)
	Save(contacts []model.Contact, path string, opts SaveOptions) error
	Resolve(name string) (string, error)
}

type SaveOptions struct {
	Append bool
}

// ContactRepository reads and writes contact sources as CSV files with a header row.
type ContactRepository struct {
	// Dir is where named contact sources live
	Dir string
	Log *logger.Logger
}

func NewContactRepository(dir string, log *logger.Logger) *ContactRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &ContactRepository{Dir: dir, Log: log.WithComponent("contacts")}
}

// Resolve maps a contact source name such as "customers" or "customers.csv" to a path under Dir.
func (r *ContactRepository) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", appErrors.NewValidation("invalid contact file name: " + name)
	}
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	return filepath.Join(r.Dir, name), nil
}

// Load parses a CSV file header-first. Rows without an email or a phone are discarded.
func (r *ContactRepository) Load(path string) ([]model.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.NewNotFound("contact file", path)
		}
		return nil, appErrors.NewPersistence("open contact file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []model.Contact{}, nil
	}
	if err != nil {
		return nil, parseError(path, 1, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	contacts := []model.Contact{}
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(path, 0, err)
		}

		raw := make(map[string]string, len(header))
		for i, key := range header {
			raw[key] = record[i]
		}
		contact := model.NewContact(raw)
		if contact.Email() == "" && contact.Phone() == "" {
			skipped++
			continue
		}
		contacts = append(contacts, contact)
	}

	r.Log.Info().
		Str("path", path).
		Int("loaded", len(contacts)).
		Int("skipped", skipped).
		Msg("loaded contacts")
	return contacts, nil
}

func parseError(path string, line int, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		line = csvErr.Line
		err = csvErr.Err
	}
	return &appErrors.ParseError{Path: path, Line: line, Err: err}
}

// Save writes contacts as CSV. Columns are the union of every contact's fields,
// well-known fields first. When appending to a file that already has a header,
// that header decides the columns.
func (r *ContactRepository) Save(contacts []model.Contact, path string, opts SaveOptions) error {
	if len(contacts) == 0 {
		return appErrors.NewValidation("no contacts to save")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return appErrors.NewPersistence("create contact dir", err)
		}
	}

	if opts.Append {
		header, err := readHeader(path)
		if err != nil {
			return err
		}
		if header != nil {
			return r.appendRows(contacts, path, header)
		}
	}

	columns := Columns(contacts)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return appErrors.NewPersistence("create contact file", err)
	}
	if err := writeRows(f, columns, contacts, true); err != nil {
		f.Close()
		os.Remove(tmp)
		return appErrors.NewPersistence("write contact file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return appErrors.NewPersistence("close contact file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return appErrors.NewPersistence("replace contact file", err)
	}

	r.Log.Info().Str("path", path).Int("count", len(contacts)).Msg("saved contacts")
	return nil
}

func (r *ContactRepository) appendRows(contacts []model.Contact, path string, header []string) error {
	known := make(map[string]bool, len(header))
	for _, h := range header {
		known[h] = true
	}
	dropped := map[string]bool{}
	for _, c := range contacts {
		for k := range c {
			if !known[k] {
				dropped[k] = true
			}
		}
	}
	if len(dropped) > 0 {
		fields := make([]string, 0, len(dropped))
		for k := range dropped {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		r.Log.Warn().Str("path", path).Strs("fields", fields).Msg("fields missing from existing header were not written")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return appErrors.NewPersistence("open contact file", err)
	}
	if err := writeRows(f, header, contacts, false); err != nil {
		f.Close()
		return appErrors.NewPersistence("append contact file", err)
	}
	if err := f.Close(); err != nil {
		return appErrors.NewPersistence("close contact file", err)
	}
	r.Log.Info().Str("path", path).Int("count", len(contacts)).Msg("appended contacts")
	return nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, appErrors.NewPersistence("open contact file", err)
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, parseError(path, 1, err)
	}
	for i := range header {
		header[i] = model.NormalizeKey(strings.TrimPrefix(header[i], "\ufeff"))
	}
	return header, nil
}

func writeRows(w io.Writer, columns []string, contacts []model.Contact, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	row := make([]string, len(columns))
	for _, c := range contacts {
		for i, col := range columns {
			row[i] = c[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", c.Label(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Columns returns the union of field names across contacts: well-known fields in
// their canonical order, then every other field alphabetically.
func Columns(contacts []model.Contact) []string {
	present := map[string]bool{}
	for _, c := range contacts {
		for k := range c {
			present[k] = true
		}
	}
	columns := make([]string, 0, len(present))
	for _, f := range model.DefaultFields {
		if present[f] {
			columns = append(columns, f)
			delete(present, f)
		}
	}
	extra := make([]string, 0, len(present))
	for k := range present {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(columns, extra...)
}
