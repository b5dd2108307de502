// internal/config/model.go
//
// Typed configuration model for ajaxviews.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                              – dotenv values,
//   • `conf/global.yaml`                           – primary static file,
//   • `AJAXVIEWS_`-prefixed environment overrides  – highest precedence.
//
// The `Views` block replaces the framework-wide lookups the view plugins
// used to perform on every request.  Each field carries its default in
// Defaults(); the loader seeds those defaults before any overlay so YAML
// only needs to name what it changes.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
	StaticURL  string `koanf:"static_url"` // prefix of the client bundle, "/static/" when empty
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// `Password` may be a literal or a Vault reference of the form
// `vault:<mount>/<path>#<key>`; cmd/web resolves it before connecting.
// The DSN carries one `%s` verb for the password.
type Database struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password"`
}

//
// Views section
//

// Views collects every tunable the view plugins consult.  Defaults are
// documented on Defaults().
type Views struct {
	PaginateBy              int      `koanf:"paginate_by"               validate:"gte=0"`
	FilterSearchInputBy     int      `koanf:"filter_search_input_by"    validate:"gte=0"`
	RequireMainName         string   `koanf:"require_main_name"         validate:"required"`
	FormGenericHeadline     bool     `koanf:"form_generic_headline"`
	CreateHeadlinePrefix    string   `koanf:"create_headline_prefix"`
	UpdateHeadlinePrefix    string   `koanf:"update_headline_prefix"`
	PreviewHeadlinePrefix   string   `koanf:"preview_headline_prefix"`
	GenericFormBaseTemplate string   `koanf:"generic_form_base_template"`
	FormRelatedObjectIDs    bool     `koanf:"form_related_object_ids"`
	FormDeleteConfirmation  bool     `koanf:"form_delete_confirmation"`
	AutoDeleteURL           bool     `koanf:"auto_delete_url"`
	ModalBaseTemplate       string   `koanf:"modal_base_template"       validate:"required"`
	AjaxBaseTemplate        string   `koanf:"ajax_base_template"        validate:"required"`
	AlwaysDeletable         []string `koanf:"always_deletable"`
	SigningKey              string   `koanf:"signing_key"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root       string // AJAXVIEWS_ROOT or discovered parent
	Templates  string // <root>/templates
	Components string // <root>/components
	Static     string // <root>/static
	Media      string // <root>/media, uploaded files
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Views    Views    `koanf:"views"`
	Paths    Paths    `koanf:"-"`
}

// Defaults returns the Views block used when YAML and env are silent:
//
//	paginate_by                30
//	filter_search_input_by     10
//	require_main_name          "main"
//	form_generic_headline      true
//	create_headline_prefix     "Add"
//	update_headline_prefix     "Edit"
//	preview_headline_prefix    "Preview"
//	form_related_object_ids    true
//	form_delete_confirmation   false
//	auto_delete_url            true
//	modal_base_template        "ajaxviews/__modal_base.html"
//	ajax_base_template         "ajaxviews/__ajax_base.html"
//	always_deletable           ["group"]
func Defaults() Views {
	return Views{
		PaginateBy:            30,
		FilterSearchInputBy:   10,
		RequireMainName:       "main",
		FormGenericHeadline:   true,
		CreateHeadlinePrefix:  "Add",
		UpdateHeadlinePrefix:  "Edit",
		PreviewHeadlinePrefix: "Preview",
		FormRelatedObjectIDs:  true,
		AutoDeleteURL:         true,
		ModalBaseTemplate:     "ajaxviews/__modal_base.html",
		AjaxBaseTemplate:      "ajaxviews/__ajax_base.html",
		AlwaysDeletable:       []string{"group"},
	}
}
