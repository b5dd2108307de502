// internal/form/cfg.go
//
// Forms subsystem: the round-tripped form_cfg blob.
//
// Context
//   form_cfg is a small JSON object rendered into a hidden field and posted
//   back verbatim.  It carries data that must survive one round trip but
//   is not part of the model: related-object ids, a success-URL override,
//   and the auto-select hint for json_cache.  The blob is client-held, so
//   on re-submission it is parsed and its known keys type-checked.
//   Unknown keys pass through untouched.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"fmt"

	"github.com/yanizio/ajaxviews/internal/core"
)

// Known form_cfg keys.
const (
	CfgRelatedObjIDs   = "related_obj_ids"
	CfgSuccessURL      = "success_url"
	CfgAutoSelectField = "auto_select_field"
)

// Cfg is the decoded form_cfg object.
type Cfg map[string]any

// ParseCfg decodes raw.  Blank input yields an empty Cfg.
func ParseCfg(raw string) (Cfg, error) {
	if raw == "" {
		return Cfg{}, nil
	}
	m, err := core.DecodeObject([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("form_cfg: %w", err)
	}
	c := Cfg(m)
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// check type-checks the known keys.
func (c Cfg) check() error {
	for _, k := range []string{CfgSuccessURL, CfgAutoSelectField} {
		if v, ok := c[k]; ok {
			if _, isStr := v.(string); !isStr {
				return fmt.Errorf("form_cfg: %s must be a string", k)
			}
		}
	}
	if v, ok := c[CfgRelatedObjIDs]; ok {
		if _, isObj := v.(map[string]any); !isObj {
			return fmt.Errorf("form_cfg: %s must be an object", CfgRelatedObjIDs)
		}
	}
	return nil
}

// Encode serializes c; an empty Cfg encodes as "".
func (c Cfg) Encode() (string, error) {
	if len(c) == 0 {
		return "", nil
	}
	b, err := json.Marshal(map[string]any(c))
	return string(b), err
}

// SuccessURL returns the success-URL override, or "".
func (c Cfg) SuccessURL() string {
	s, _ := c[CfgSuccessURL].(string)
	return s
}

// AutoSelectField returns the select field to update client-side, or "".
func (c Cfg) AutoSelectField() string {
	s, _ := c[CfgAutoSelectField].(string)
	return s
}

// RelatedObjIDs returns the related id mapping, or nil.
func (c Cfg) RelatedObjIDs() map[string]any {
	m, _ := c[CfgRelatedObjIDs].(map[string]any)
	return m
}

// MergeRelatedObjIDs adds ids to the related_obj_ids mapping.  Existing
// keys are overwritten, so each id appears once.
func (c Cfg) MergeRelatedObjIDs(ids map[string]any) {
	if len(ids) == 0 {
		return
	}
	m := c.RelatedObjIDs()
	if m == nil {
		m = make(map[string]any, len(ids))
	}
	for k, v := range ids {
		m[k] = v
	}
	c[CfgRelatedObjIDs] = m
}
