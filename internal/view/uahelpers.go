// internal/view/uahelpers.go
//
// User-Agent template helpers.  Views put the request's *RequestInfo in
// the context as "request"; the helpers are nil-safe so templates rendered
// outside a request (tests, mail) still execute.
package view

import (
	"html/template"

	"github.com/yanizio/ajaxviews/internal/requestinfo"
)

func uaFuncMap() template.FuncMap {
	ua := func(i *requestinfo.RequestInfo) requestinfo.UA {
		if i == nil {
			return requestinfo.UA{}
		}
		return i.UA
	}
	return template.FuncMap{
		"browser":        func(i *requestinfo.RequestInfo) string { return ua(i).Browser },
		"browserVersion": func(i *requestinfo.RequestInfo) string { return ua(i).Version },
		"os":             func(i *requestinfo.RequestInfo) string { return ua(i).OS },
		"osVersion":      func(i *requestinfo.RequestInfo) string { return ua(i).OSVersion },
		"device":         func(i *requestinfo.RequestInfo) string { return ua(i).Device },
		"platform":       func(i *requestinfo.RequestInfo) string { return ua(i).Platform },
		"isBot":          func(i *requestinfo.RequestInfo) bool { return ua(i).IsBot },
		"isAjax":         func(i *requestinfo.RequestInfo) bool { return i != nil && i.Ajax },
	}
}
