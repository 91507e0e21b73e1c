package server

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/render"
	"github.com/vinodismyname/hidash/internal/uploads"
	"github.com/vinodismyname/hidash/pkg/dasherr"
	"github.com/vinodismyname/hidash/pkg/validation"
)

// Query parameter names shared by the page, the exports and the API.
const (
	paramHealthiness = "hi"
	paramOKR         = "okr"
	paramPeriod      = "yearweek"
	paramRegion      = "region"
	paramCity        = "city"
	paramBucket      = "range"
)

// query is the state of one interaction: which uploads and which filters.
type query struct {
	Healthiness string `json:"hi" validate:"omitempty,handle"`
	OKR         string `json:"okr" validate:"omitempty,handle"`
	Selection   filter.Selection
}

func parseQuery(v url.Values) query {
	return query{
		Healthiness: strings.TrimSpace(v.Get(paramHealthiness)),
		OKR:         strings.TrimSpace(v.Get(paramOKR)),
		Selection: filter.Selection{
			Periods: v[paramPeriod],
			Regions: v[paramRegion],
			Cities:  v[paramCity],
			Buckets: v[paramBucket],
		}.Clean(),
	}
}

// values is the inverse of parseQuery; empty parts are left out.
func (q query) values() url.Values {
	v := url.Values{}
	if q.Healthiness != "" {
		v.Set(paramHealthiness, q.Healthiness)
	}
	if q.OKR != "" {
		v.Set(paramOKR, q.OKR)
	}
	for name, vals := range map[string][]string{
		paramPeriod: q.Selection.Periods,
		paramRegion: q.Selection.Regions,
		paramCity:   q.Selection.Cities,
		paramBucket: q.Selection.Buckets,
	} {
		for _, s := range vals {
			v.Add(name, s)
		}
	}
	return v
}

func (q query) validate() *dasherr.Error {
	if msg := validation.ValidateStruct(q); msg != "" {
		code, text, _ := strings.Cut(msg, ":")
		return dasherr.New(dasherr.Code(code), text)
	}
	return nil
}

// resolved holds the uploads a query points at.
type resolved struct {
	inputs      pipeline.Inputs
	healthiness render.Upload
	okr         render.Upload
}

// resolve looks the query's handles up in the store. A missing or expired
// handle yields an INVALID_HANDLE error; the other upload is still resolved.
func (s *Server) resolve(q query) (resolved, *dasherr.Error) {
	var (
		out   resolved
		first *dasherr.Error
	)
	lookup := func(id string, src *pipeline.Source, up *render.Upload) {
		if id == "" {
			return
		}
		u, ok := s.store.Get(id)
		if !ok {
			if first == nil {
				first = dasherr.Wrap(dasherr.InvalidHandle, fmt.Errorf("%w: %s", uploads.ErrHandleNotFound, id))
			}
			return
		}
		*src = pipeline.Source{Name: u.Name, Data: u.Data}
		*up = render.Upload{ID: u.ID, Name: u.Name}
	}
	lookup(q.Healthiness, &out.inputs.Healthiness, &out.healthiness)
	lookup(q.OKR, &out.inputs.OKR, &out.okr)
	return out, first
}
