// internal/plugin/list.go
//
// List feature: pagination, filter / sort application, and the
// filter-options sub-responses.
//
// Context
// -------
// The client addresses filter columns by index into View.FilterFields.
// Four json_cfg keys drive a normal list request:
//
//	selected_filter_index   field to filter on
//	selected_filter_values  []value, or {min_date, max_date} for dates
//	sort_index, sort_order  field to sort on, "asc" or descending
//
// A request carrying `filter_index` is a sub-request for one column's
// filter widget.  It is answered with JSON instead of the list page:
//
//	values / choices  {values_list, selected_values, reset_button, search_input}
//	date              {min_date, max_date, selected_min_date,
//	                   selected_max_date, reset_button}
//
// `ignore_selected_values` suppresses the echo of the current selection.
// `ajax_page_nr` overrides the `page` query parameter.

package plugin

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/metrics"
	"github.com/yanizio/ajaxviews/internal/query"
)

// ListPlugin serves list views.
type ListPlugin struct {
	Base
	page int
}

// Dispatch maps ajax_page_nr onto the page number.
func (p *ListPlugin) Dispatch() error {
	if err := p.Base.Dispatch(); err != nil {
		return err
	}
	p.page = 1
	if n, ok := p.ctx.JSONCfg.Int("ajax_page_nr"); ok {
		p.page = n
	} else if s := p.ctx.Query("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: page %q", ErrBadRequest, s)
		}
		p.page = n
	}
	return nil
}

// Get answers a filter-options sub-request or renders the list page.
func (p *ListPlugin) Get() error {
	p.ctx.JSONCfg["init_view_type"] = "listView"
	if idx, ok := p.ctx.JSONCfg.Int("filter_index"); ok && idx >= 0 {
		return p.filterResponse(idx)
	}

	q, err := p.self.GetQueryset()
	if err != nil {
		return err
	}
	d := Data{}
	if p.view.PaginateBy > 0 {
		page, err := q.Paginate(p.reqCtx(), p.env().DB, p.page, p.view.PaginateBy)
		if err != nil {
			return err
		}
		d["object_list"] = page.Rows
		d["page_obj"] = page
		d["is_paginated"] = page.NumPages > 1
	} else {
		rows, err := q.All(p.reqCtx(), p.env().DB)
		if err != nil {
			return err
		}
		d["object_list"] = rows
		d["is_paginated"] = false
	}
	d, err = p.self.GetContextData(d)
	if err != nil {
		return err
	}
	return p.super.RenderToResponse(p.view.Template, d)
}

// GetQueryset scopes to the user when FilterUser is set, then applies the
// filter step and the sort step.
func (p *ListPlugin) GetQueryset() (*query.Query, error) {
	q, err := p.unfiltered()
	if err != nil {
		return nil, err
	}
	opts, err := p.filterOpts()
	if err != nil {
		return nil, err
	}
	return q.DefaultFilter(opts)
}

// GetContextData adds the AJAX layout and the active sort.
func (p *ListPlugin) GetContextData(d Data) (Data, error) {
	d, err := p.Base.GetContextData(d)
	if err != nil {
		return nil, err
	}
	if p.ajaxWithoutModalParam() {
		d["generic_template"] = p.env().Views.AjaxBaseTemplate
	}
	if idx, ok := p.ctx.JSONCfg.Int("sort_index"); ok && idx >= 0 {
		d["sort_index"] = idx
		d["sort_order"] = p.ctx.JSONCfg.String("sort_order")
	}
	d["filter_fields"] = p.view.FilterFields
	return d, nil
}

// unfiltered is the full collection the filters and options work on.
func (p *ListPlugin) unfiltered() (*query.Query, error) {
	if !p.view.FilterUser {
		return p.super.GetQueryset()
	}
	m := p.view.Model
	pred, args := p.env().Perms.ObjectScope(p.ctx.User, m.Name, "`"+m.Table+"`.`"+m.PK+"`")
	return query.From(m).Where(pred, args...), nil
}

func (p *ListPlugin) field(idx int) (*query.FilterField, error) {
	if idx < 0 || idx >= len(p.view.FilterFields) {
		return nil, &LookupError{Msg: query.MsgInvalidField, Path: strconv.Itoa(idx)}
	}
	ff := p.view.FilterFields[idx]
	return &ff, nil
}

func (p *ListPlugin) filterOpts() (query.Opts, error) {
	cfg := p.ctx.JSONCfg
	o := query.Opts{
		Selected:  cfg["selected_filter_values"],
		SortOrder: cfg.String("sort_order"),
		Distinct:  *p.view.Distinct,
	}
	var err error
	if idx, ok := cfg.Int("selected_filter_index"); ok && idx >= 0 {
		if o.Filter, err = p.field(idx); err != nil {
			return o, err
		}
	}
	if idx, ok := cfg.Int("sort_index"); ok && idx >= 0 {
		if o.Sort, err = p.field(idx); err != nil {
			return o, err
		}
	}
	return o, nil
}

/*──────────────────────────── filter options ───────────────────────────────*/

func (p *ListPlugin) filterResponse(idx int) error {
	ff, err := p.field(idx)
	if err != nil {
		return err
	}
	q, err := p.unfiltered()
	if err != nil {
		return err
	}

	switch ff.Kind {
	case query.KindValues, query.KindChoices:
		vals, err := q.Values(p.reqCtx(), p.env().DB, ff.Path)
		if err != nil {
			return err
		}
		pairs := lo.FilterMap(vals, func(v any, _ int) ([2]any, bool) {
			return [2]any{v, ff.Label(v)}, v != ""
		})
		kind := "values"
		if ff.Kind == query.KindChoices {
			kind = "choices"
		}
		metrics.FilterResponsesTotal.WithLabelValues(kind).Inc()
		return p.multipleResponse(pairs)
	case query.KindDate:
		metrics.FilterResponsesTotal.WithLabelValues("date").Inc()
		return p.dateResponse(q, ff.Path)
	case query.KindExclude, query.KindExcludeFilter, query.KindExcludeSort:
		return &LookupError{Msg: query.MsgInvalidSet, Path: ff.Path}
	}
	return &LookupError{Msg: query.MsgInvalidField, Path: ff.Path}
}

func (p *ListPlugin) multipleResponse(pairs [][2]any) error {
	selected := []any{}
	if !p.ctx.JSONCfg.Bool("ignore_selected_values") {
		if s, ok := p.ctx.JSONCfg["selected_filter_values"].([]any); ok {
			selected = s
		}
	}
	return p.super.JSON(map[string]any{
		"values_list":     pairs,
		"selected_values": selected,
		"reset_button":    len(selected) > 0,
		"search_input":    len(pairs) > p.view.FilterSearchInputBy,
	})
}

func (p *ListPlugin) dateResponse(q *query.Query, path string) error {
	minDate, maxDate, err := q.MinMax(p.reqCtx(), p.env().DB, path)
	if err != nil {
		return err
	}
	selMin, selMax, reset := minDate, maxDate, false

	sel, _ := p.ctx.JSONCfg["selected_filter_values"].(map[string]any)
	if len(sel) > 0 && !p.ctx.JSONCfg.Bool("ignore_selected_values") {
		for key, dst := range map[string]*string{"min_date": &selMin, "max_date": &selMax} {
			s, _ := sel[key].(string)
			if s == "" {
				continue
			}
			d, err := query.ParseDate(s)
			if err != nil {
				return &LookupError{Msg: query.MsgInvalidValues, Path: path}
			}
			*dst = d
		}
		reset = true
	}
	return p.super.JSON(map[string]any{
		"min_date":          minDate,
		"max_date":          maxDate,
		"selected_min_date": selMin,
		"selected_max_date": selMax,
		"reset_button":      reset,
	})
}
