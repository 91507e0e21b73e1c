// Package pipeline runs one filter-and-render pass: load the uploads, cascade
// the selection over the index table and slice every column group.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/groups"
)

// Section keys and titles produced ahead of the layout.
const (
	KeyIndex   = groups.KeyIndex
	KeyChart   = groups.KeyChart
	TitleIndex = "Healthiness Index Result"
	TitleChart = "Tren Healthiness Index per City"
)

var (
	// ErrNoUpload means the healthiness dataset has not been provided.
	ErrNoUpload = errors.New("pipeline: healthiness dataset not uploaded")
	// ErrNoOKR means the pass reached the OKR section without an OKR upload.
	ErrNoOKR = errors.New("pipeline: okr table not uploaded")
)

// Source is an uploaded file.
type Source struct {
	Name string
	Data []byte
}

// Empty reports whether nothing was uploaded.
func (s Source) Empty() bool { return len(s.Data) == 0 }

// Inputs are the two uploads a pass reads.
type Inputs struct {
	Healthiness Source
	OKR         Source
}

// Pipeline holds the settings shared by every pass.
type Pipeline struct {
	Layout groups.Layout
	Mode   filter.Mode
	Load   dataset.Options
	Log    zerolog.Logger
}

// New builds a Pipeline.
func New(layout groups.Layout, mode filter.Mode, load dataset.Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{Layout: layout, Mode: mode, Load: load, Log: log}
}

// Run executes one pass. On failure it returns the sections produced so far
// together with the error; the result is never nil.
func (p *Pipeline) Run(ctx context.Context, in Inputs, sel filter.Selection) (*Result, error) {
	start := time.Now()
	sel = sel.Clean()
	res := &Result{Selection: sel}
	err := p.run(ctx, in, sel, res)

	log := p.logger(ctx)
	ev := log.Debug()
	if err != nil && !errors.Is(err, ErrNoUpload) {
		ev = log.Warn().Err(err)
	}
	ev.Int("sections", len(res.Sections)).
		Strs("yearweek", sel.Periods).
		Strs("region", sel.Regions).
		Strs("city", sel.Cities).
		Strs("range", sel.Buckets).
		Dur("elapsed", time.Since(start)).
		Msg("dashboard pass")
	return res, err
}

func (p *Pipeline) run(ctx context.Context, in Inputs, sel filter.Selection, res *Result) error {
	raw, err := p.loadIndex(in)
	if err != nil {
		return err
	}
	idx, err := raw.Project(KeyIndex, []string{dataset.ColIndex})
	if err != nil {
		return err
	}
	cascade, err := filter.ApplyIndex(idx, sel, p.Mode)
	if err != nil {
		return err
	}
	if res.Options, err = cascade.Options(); err != nil {
		return err
	}
	res.BucketCities = cascade.BucketCities
	res.Sections = append(res.Sections, Section{Key: KeyIndex, Title: TitleIndex, Kind: KindTable, Table: cascade.Result})

	if err := ctx.Err(); err != nil {
		return err
	}
	chart, err := BuildChart(cascade.Result)
	if err != nil {
		return err
	}
	res.Sections = append(res.Sections, Section{Key: KeyChart, Title: TitleChart, Kind: KindChart, Chart: chart})

	scope := cascade.CityScope(sel)
	for _, g := range p.Layout.Groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		var src dataset.Table
		switch g.Source {
		case groups.SourceOKR:
			if in.OKR.Empty() {
				return ErrNoOKR
			}
			if src, err = dataset.LoadOKR(in.OKR.Name, in.OKR.Data, p.Load); err != nil {
				return err
			}
		default:
			if src, err = groups.Slice(raw, g); err != nil {
				return fmt.Errorf("pipeline: %s: %w", g.Key, err)
			}
		}
		out, err := filter.Narrow(src, sel, scope)
		if err != nil {
			return fmt.Errorf("pipeline: %s: %w", g.Key, err)
		}
		out.Name = g.Key
		res.Sections = append(res.Sections, Section{Key: g.Key, Title: g.Title, Kind: KindTable, Table: out})
	}
	return nil
}

// Options loads only the index table and returns the cascaded option lists.
func (p *Pipeline) Options(ctx context.Context, in Inputs, sel filter.Selection) (filter.Options, error) {
	if err := ctx.Err(); err != nil {
		return filter.Options{}, err
	}
	idx, err := p.loadIndex(in)
	if err != nil {
		return filter.Options{}, err
	}
	cascade, err := filter.ApplyIndex(idx, sel.Clean(), p.Mode)
	if err != nil {
		return filter.Options{}, err
	}
	return cascade.Options()
}

func (p *Pipeline) loadIndex(in Inputs) (dataset.Table, error) {
	if in.Healthiness.Empty() {
		return dataset.Table{}, ErrNoUpload
	}
	return dataset.LoadHealthiness(in.Healthiness.Name, in.Healthiness.Data, p.Load)
}

func (p *Pipeline) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &p.Log
}
