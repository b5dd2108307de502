// internal/form/definition.go
//
// Forms subsystem: YAML definition loader.
//
// Context
//   Each model form is declared in a YAML file under
//   “components/<comp>/forms/”.  A definition names the form, the model it
//   saves, its Meta block (headline, success message, success URL, size,
//   permission assignment), and its fields.  At application start we parse
//   every “*.yaml” and store the resulting FormDef in an in-memory registry.
//   View plugins fetch definitions by ID, guaranteeing a single source of
//   truth.
//
// Workflow
//   •  Structs mirror the YAML schema: FormDef → Meta / FieldDef.
//   •  LoadFormDef parses a single YAML file and validates structural rules.
//   •  RegisterForms walks one or more base directories, discovers YAMLs,
//      loads them via LoadFormDef, and adds them to the registry.  Earlier
//      directories win, so overrides go first.
//   •  Register adds a definition built in Go (tests, generated forms).
//   •  GetFormDef offers safe, read-only access to a parsed form by ID.
//
// Style
//   Comments follow the house guide: full sentences, two spaces after
//   periods, Oxford commas, and clear roles.  Helper comments use short
//   noun phrases.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/ajaxviews/internal/query"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
//
// The form is uniquely identified by ID which should be namespaced by
// component, e.g. “library/book”.  Model is empty for plain (non-model)
// forms such as preview confirmation forms.
type FormDef struct {
	ID     string     `yaml:"id"     validate:"required"`
	Model  string     `yaml:"model"`
	Meta   Meta       `yaml:"meta"`
	Fields []FieldDef `yaml:"fields" validate:"required,min=1,dive"`
}

// Meta carries the per-form options a view inherits.
type Meta struct {
	Headline       string `yaml:"headline"`
	HeadlineFull   string `yaml:"headline_full"`
	SuccessURL     string `yaml:"success_url"`
	SuccessMessage string `yaml:"success_message"`
	FormSize       string `yaml:"form_size"   validate:"omitempty,oneof=sm md lg"`
	AssignPerm     bool   `yaml:"assign_perm"`
	LabelField     string `yaml:"label_field"` // json_cache label source
}

// FieldDef describes a single input control on the form.  Validation
// metadata lives inline so the server can enforce the same rules the client
// hints at.
type FieldDef struct {
	Name         string   `yaml:"name"     validate:"required"`
	Label        string   `yaml:"label"`
	Type         string   `yaml:"type"     validate:"required,oneof=text textarea email password number decimal date checkbox select radio fk hidden file"`
	Placeholder  string   `yaml:"placeholder"`
	Required     bool     `yaml:"required"`
	MinLength    int      `yaml:"minlength" validate:"gte=0"`
	MaxLength    int      `yaml:"maxlength" validate:"gte=0"`
	Pattern      string   `yaml:"pattern"`
	Options      []string `yaml:"options"`
	Related      string   `yaml:"related"`       // fk: related model name
	RelatedLabel string   `yaml:"related_label"` // fk: column shown in the select
	Virtual      bool     `yaml:"virtual"`       // cleaned but never saved
	ErrorMsg     string   `yaml:"error"`
}

// Headline returns the bare headline, falling back to HeadlineFull.
func (d *FormDef) Headline() string {
	if d.Meta.Headline != "" {
		return d.Meta.Headline
	}
	return d.Meta.HeadlineFull
}

// Field returns the named field definition.
func (d *FormDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// QueryModel resolves Model through the query registry.
func (d *FormDef) QueryModel() *query.Model {
	if d.Model == "" {
		return nil
	}
	return query.Lookup(d.Model)
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormDef)
	validate   = validator.New()
)

// GetFormDef returns a parsed FormDef by ID.  The boolean is false when
// the ID is unknown.
func GetFormDef(id string) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[id]
	return fd, ok
}

// Register validates fd and stores it, replacing any previous definition.
func Register(fd *FormDef) error {
	if err := validateFormDef(fd, "<code>"); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[fd.ID] = fd
	return nil
}

// MustRegister is Register for init() blocks.
func MustRegister(fd *FormDef) *FormDef {
	if err := Register(fd); err != nil {
		panic(err)
	}
	return fd
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML file, validates its structure, and returns a
// populated FormDef.  It NEVER mutates the global registry.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}

	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}

	if err := validateFormDef(&fd, path); err != nil {
		return nil, err
	}

	return &fd, nil
}

// RegisterForms walks one or more base directories and loads every “*.yaml”
// under “components/*/forms/”.  The dirs slice must be ordered by
// precedence, overrides BEFORE defaults.
func RegisterForms(baseDirs []string) error {
	if len(baseDirs) == 0 {
		return errors.New("RegisterForms: no base directories provided")
	}

	seen := make(map[string]bool)
	for _, base := range baseDirs {
		formsRoot := filepath.Join(base, "components")
		err := filepath.WalkDir(formsRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") ||
				filepath.Base(filepath.Dir(path)) != "forms" {
				return nil
			}

			fd, err := LoadFormDef(path)
			if err != nil {
				return err // fail fast so issues surface loudly.
			}
			if seen[fd.ID] {
				return nil // a higher-precedence dir already supplied it.
			}
			seen[fd.ID] = true
			registryMu.Lock()
			registry[fd.ID] = fd
			registryMu.Unlock()
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateFormDef enforces structural rules.  Tag rules run through
// validator; cross-field rules are checked by hand.
func validateFormDef(fd *FormDef, path string) error {
	if err := validate.Struct(fd); err != nil {
		return fmt.Errorf("form definition %s: %w", path, err)
	}

	fieldNames := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, path); err != nil {
			return err
		}
		if _, dup := fieldNames[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", path, f.Name)
		}
		fieldNames[f.Name] = struct{}{}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, path string) error {
	if f.Label == "" {
		f.Label = strings.ReplaceAll(strings.ToUpper(f.Name[:1])+f.Name[1:], "_", " ")
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("form %s: field '%s' invalid regex pattern: %v", path, f.Name, err)
		}
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		return fmt.Errorf("form %s: field '%s' minlength greater than maxlength", path, f.Name)
	}
	if (f.Type == "select" || f.Type == "radio") && len(f.Options) == 0 {
		return fmt.Errorf("form %s: field '%s' has no options", path, f.Name)
	}
	if f.Type == "fk" && f.Related == "" {
		return fmt.Errorf("form %s: fk field '%s' missing 'related'", path, f.Name)
	}
	return nil
}
