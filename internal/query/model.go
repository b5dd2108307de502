// internal/query/model.go
//
// Model declarations and the process-wide model registry.
//
// Context
// -------
// A Model names one table, its primary key, and the fields views may
// filter, sort, or save.  Components register their models in init()
// (see components/library) and views look them up by name.
//
// Field paths
// -----------
// Filter and sort declarations address fields by path.  A path is either a
// plain field name (`title`) or one hop across a foreign key
// (`author__name`).  A bare foreign-key path (`author`) addresses the id
// column.
//
// Notes
// -----
// • Identifiers are validated once at Register, never at query time.
// • Oxford commas, two spaces after periods.
package query

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Type is the storage type of a field.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDate
	TypeDateTime
	TypeFK
	TypeFile
)

// Field describes one model column.
type Field struct {
	Name    string // logical name, used in paths and forms
	Column  string // SQL column; defaults to Name, or Name+"_id" for TypeFK
	Type    Type
	Related string // TypeFK only: name of the referenced model
}

// Model describes one table.
type Model struct {
	Name       string   // registry key, e.g. "book"
	Table      string   // SQL table
	PK         string   // primary-key column, default "id"
	Fields     []Field  // declared fields (PK excluded)
	Ordering   []string // default ordering paths, "-" prefix for descending
	SoftDelete string   // optional column; non-NULL rows are hidden by default
	URLName    string   // route name of the object's detail page
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(s string) string { return "`" + s + "`" }

// Field returns the named field, or false.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// column returns the qualified SQL expression for a column of m.
func (m *Model) column(col string) string {
	return quoteIdent(m.Table) + "." + quoteIdent(col)
}

func (m *Model) validate() error {
	if m.Name == "" || !identRE.MatchString(m.Table) {
		return fmt.Errorf("query: model %q: bad table %q", m.Name, m.Table)
	}
	if m.PK == "" {
		m.PK = "id"
	}
	if !identRE.MatchString(m.PK) {
		return fmt.Errorf("query: model %q: bad pk %q", m.Name, m.PK)
	}
	if m.SoftDelete != "" && !identRE.MatchString(m.SoftDelete) {
		return fmt.Errorf("query: model %q: bad soft-delete column %q", m.Name, m.SoftDelete)
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if !identRE.MatchString(f.Name) || strings.Contains(f.Name, "__") {
			return fmt.Errorf("query: model %q: bad field name %q", m.Name, f.Name)
		}
		if f.Column == "" {
			f.Column = f.Name
			if f.Type == TypeFK {
				f.Column = f.Name + "_id"
			}
		}
		if !identRE.MatchString(f.Column) {
			return fmt.Errorf("query: model %q: bad column %q", m.Name, f.Column)
		}
		if f.Type == TypeFK && f.Related == "" {
			return fmt.Errorf("query: model %q: fk %q has no related model", m.Name, f.Name)
		}
	}
	return nil
}

/*──────────────────────────── registry ─────────────────────────────────────*/

var (
	mu     sync.RWMutex
	models = map[string]*Model{}
)

// Register validates m and adds it to the registry.  Duplicate names
// panic; this runs from init().
func Register(m *Model) {
	if err := m.validate(); err != nil {
		panic(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := models[m.Name]; dup {
		panic("query: duplicate model " + m.Name)
	}
	models[m.Name] = m
}

// Lookup returns the registered model, or nil.
func Lookup(name string) *Model {
	mu.RLock()
	defer mu.RUnlock()
	return models[name]
}

/*──────────────────────────── path resolution ──────────────────────────────*/

// join is one LEFT JOIN introduced by a relation path.
type join struct {
	alias string
	sql   string
}

// target is a resolved field path.
type target struct {
	expr  string
	field Field
	join  *join
}

// resolve maps a field path to its SQL expression.  The PK name resolves to
// the primary-key column.
func (m *Model) resolve(path string) (target, error) {
	head, rest, hop := strings.Cut(path, "__")
	if head == m.PK && !hop {
		return target{expr: m.column(m.PK), field: Field{Name: m.PK, Column: m.PK, Type: TypeInt}}, nil
	}
	f, ok := m.Field(head)
	if !ok {
		return target{}, fmt.Errorf("query: %s has no field %q", m.Name, head)
	}
	if !hop {
		return target{expr: m.column(f.Column), field: f}, nil
	}
	if f.Type != TypeFK || strings.Contains(rest, "__") {
		return target{}, fmt.Errorf("query: unsupported path %q on %s", path, m.Name)
	}
	rel := Lookup(f.Related)
	if rel == nil {
		return target{}, fmt.Errorf("query: %s.%s references unknown model %q", m.Name, f.Name, f.Related)
	}
	var rf Field
	switch {
	case rest == rel.PK:
		rf = Field{Name: rel.PK, Column: rel.PK, Type: TypeInt}
	default:
		if rf, ok = rel.Field(rest); !ok {
			return target{}, fmt.Errorf("query: %s has no field %q", rel.Name, rest)
		}
	}
	alias := "rel_" + f.Name
	j := &join{
		alias: alias,
		sql: fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s",
			quoteIdent(rel.Table), quoteIdent(alias),
			quoteIdent(alias), quoteIdent(rel.PK), m.column(f.Column)),
	}
	return target{expr: quoteIdent(alias) + "." + quoteIdent(rf.Column), field: rf, join: j}, nil
}
