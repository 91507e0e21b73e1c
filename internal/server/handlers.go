package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/render"
	"github.com/vinodismyname/hidash/internal/runtime"
	"github.com/vinodismyname/hidash/internal/uploads"
	"github.com/vinodismyname/hidash/pkg/dasherr"
	"github.com/vinodismyname/hidash/pkg/pagination"
	"github.com/vinodismyname/hidash/pkg/validation"
)

// Multipart field names of the upload form.
const (
	fieldHealthiness = "healthiness_index"
	fieldOKR         = "okr"
)

// handleHealth returns status and build version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uploads": s.store.Count(),
	})
}

// handlePage renders the dashboard. Failures are logged and the page shows
// whatever the pass produced before it stopped.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)
	q := parseQuery(r.URL.Query())

	res, herr := s.resolve(q)
	if herr != nil {
		log.Warn().Err(herr).Msg("upload handle unavailable")
	}
	data := render.PageData{
		Version:     s.version,
		Healthiness: res.healthiness,
		OKR:         res.okr,
		Selection:   q.Selection,
		Query:       template.URL(q.values().Encode()),
		MaxUploadMB: s.limits.MaxUploadBytes >> 20,
	}

	if !res.inputs.Healthiness.Empty() {
		result, err := s.pipeline.Run(ctx, res.inputs, q.Selection)
		if err != nil {
			log.Error().Err(err).Msg("dashboard pass failed")
		}
		data.Loaded = len(result.Sections) > 0
		data.Options = result.Options
		if data.Sections, err = render.PageSections(result, 0); err != nil {
			log.Error().Err(err).Msg("render sections")
		}
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, data); err != nil {
		log.Error().Err(err).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleUpload stores the posted files and redirects to the page with their
// handles. A field left empty keeps the handle the form carried. Clients that
// accept JSON get the handles as JSON instead of a redirect.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)
	wantJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	fail := func(e *dasherr.Error) {
		log.Warn().Err(e).Msg("upload rejected")
		if wantJSON {
			runtime.WriteError(w, e)
			return
		}
		http.Redirect(w, r, "/?"+query{Healthiness: r.Form.Get(paramHealthiness), OKR: r.Form.Get(paramOKR)}.values().Encode(), http.StatusSeeOther)
	}

	// Two files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.limits.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(dasherr.Wrap(dasherr.FileTooLarge, err))
			return
		}
		fail(dasherr.Wrap(dasherr.Validation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	q := query{
		Healthiness: strings.TrimSpace(r.FormValue(paramHealthiness)),
		OKR:         strings.TrimSpace(r.FormValue(paramOKR)),
	}
	fields := []struct {
		name   string
		handle *string
		staged string
	}{
		{name: fieldHealthiness, handle: &q.Healthiness},
		{name: fieldOKR, handle: &q.OKR},
	}

	// Every file is stored before any handle the form carried is released,
	// so a rejected file leaves the previous uploads in place.
	for i := range fields {
		id, err := s.storeFile(r, fields[i].name)
		if err != nil {
			for _, f := range fields[:i] {
				if f.staged != "" {
					_ = s.store.Remove(f.staged)
				}
			}
			fail(classifyUpload(err))
			return
		}
		fields[i].staged = id
	}
	for _, f := range fields {
		if f.staged == "" {
			continue
		}
		if old := *f.handle; old != "" {
			_ = s.store.Remove(old)
		}
		*f.handle = f.staged
		log.Info().Str("field", f.name).Str("handle", f.staged).Msg("upload stored")
	}

	if wantJSON {
		writeJSON(w, http.StatusOK, map[string]string{paramHealthiness: q.Healthiness, paramOKR: q.OKR})
		return
	}
	http.Redirect(w, r, "/?"+q.values().Encode(), http.StatusSeeOther)
}

// storeFile saves one multipart file. It returns "" when the field is empty.
func (s *Server) storeFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.limits.MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("server: read %s: %w", field, err)
	}
	return s.store.Put(r.Context(), header.Filename, data)
}

func classifyUpload(err error) *dasherr.Error {
	switch {
	case errors.Is(err, uploads.ErrTooLarge):
		return dasherr.Wrap(dasherr.FileTooLarge, err)
	case errors.Is(err, uploads.ErrUnsupported):
		return dasherr.Wrap(dasherr.UnsupportedFormat, err)
	case errors.Is(err, runtime.ErrUploadsFull):
		return dasherr.Wrap(dasherr.BusyResource, err)
	}
	return pipeline.Classify(err)
}

// pass validates the query, resolves its uploads and runs the pipeline.
// The returned result is nil only when the request never reached the pass.
func (s *Server) pass(r *http.Request) (query, *pipeline.Result, *dasherr.Error) {
	q := parseQuery(r.URL.Query())
	if e := q.validate(); e != nil {
		return q, nil, e
	}
	res, herr := s.resolve(q)
	if herr != nil {
		return q, nil, herr
	}
	result, err := s.pipeline.Run(r.Context(), res.inputs, q.Selection)
	if err != nil {
		return q, result, pipeline.Classify(err)
	}
	return q, result, nil
}

// handleChart serves the index trend as SVG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	_, result, e := s.pass(r)
	chart := result.Chart()
	if e != nil && chart == nil {
		runtime.WriteError(w, e)
		return
	}
	var buf bytes.Buffer
	if err := render.ChartSVG(&buf, chart); err != nil {
		runtime.WriteError(w, dasherr.Wrap(dasherr.RenderFailed, err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = buf.WriteTo(w)
}

// handleExport serves every table section as an xlsx workbook. A pass that
// stopped early is reported instead of exporting an incomplete workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	_, result, e := s.pass(r)
	if e != nil {
		runtime.WriteError(w, e)
		return
	}
	var buf bytes.Buffer
	if err := render.Workbook(&buf, result); err != nil {
		runtime.WriteError(w, dasherr.Wrap(dasherr.RenderFailed, err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="healthiness_index.xlsx"`)
	_, _ = buf.WriteTo(w)
}

type dashboardResponse struct {
	render.Document
	Error *dasherr.Body `json:"error,omitempty"`
}

// handleDashboard returns the pass as JSON. Tables are capped at the preview
// limit; a failed pass returns the sections produced so far plus the error.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	_, result, e := s.pass(r)
	if e != nil && result == nil {
		runtime.WriteError(w, e)
		return
	}
	resp := dashboardResponse{Document: render.NewDocument(result, s.limits.PreviewRowLimit)}
	status := http.StatusOK
	if e != nil {
		body := e.ToBody()
		resp.Error = &body
		status = e.Status()
	}
	writeJSON(w, status, resp)
}

// handleOptions returns the cascaded option lists for the query's selection.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query())
	if e := q.validate(); e != nil {
		runtime.WriteError(w, e)
		return
	}
	res, herr := s.resolve(q)
	if herr != nil {
		runtime.WriteError(w, herr)
		return
	}
	opts, err := s.pipeline.Options(r.Context(), res.inputs, q.Selection)
	if err != nil {
		runtime.WriteError(w, pipeline.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Selection filter.Selection `json:"selection"`
		Options   filter.Options   `json:"options"`
	}{q.Selection, opts})
}

type pageParams struct {
	Cursor   string `json:"cursor" validate:"omitempty,cursor"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=1000"`
}

type sectionResponse struct {
	render.SectionView
	NextCursor string `json:"next_cursor,omitempty"`
}

// handleSection returns one section window. The cursor is bound to the
// uploads, section and selection it was issued for.
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p := pageParams{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			runtime.WriteError(w, dasherr.New(dasherr.Validation, "page_size must be an integer"))
			return
		}
		p.PageSize = n
	}
	if msg := validation.ValidateStruct(p); msg != "" {
		code, text, _ := strings.Cut(msg, ":")
		runtime.WriteError(w, dasherr.New(dasherr.Code(code), text))
		return
	}

	q, result, e := s.pass(r)
	if result == nil {
		runtime.WriteError(w, e)
		return
	}
	section, ok := result.Section(key)
	if !ok {
		if e == nil {
			e = dasherr.Wrapf(dasherr.NotFound, "section %q not found", key)
		}
		runtime.WriteError(w, e)
		return
	}

	c := pagination.Cursor{Src: q.Healthiness, Okr: q.OKR, K: key, Sh: q.Selection.Hash(), Ps: p.PageSize}
	if c.Ps <= 0 {
		c.Ps = s.limits.PreviewRowLimit
	}
	if p.Cursor != "" {
		prev, err := pagination.DecodeCursor(p.Cursor)
		if err == nil {
			err = prev.Bind(c.Src, c.Okr, c.K, c.Sh)
		}
		if err != nil {
			runtime.WriteError(w, dasherr.Wrap(dasherr.CursorInvalid, err))
			return
		}
		c.Off, c.Ps = prev.Off, prev.Ps
	}

	resp := sectionResponse{SectionView: render.NewSectionView(section, c.Off, c.Ps)}
	if resp.Table != nil {
		next, err := pagination.Next(c, len(resp.Table.Rows), resp.Table.TotalRows)
		if err != nil {
			runtime.WriteError(w, dasherr.Wrap(dasherr.RenderFailed, err))
			return
		}
		resp.NextCursor = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
