package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/groups"
)

const rawCSV = `,yearweek,location,region,Healthiness_Index_(%),kpi_a,kpi_b,status_a
0,202401,A,R1,80,1,2,ok
1,202401,B,R1,40,3,4,alert
2,202402,A,R1,82,5,6,ok
3,202402,B,R1,41,7,8,alert
`

const okrCSV = `,yearweek,location,region,target
0,202401,A,R1,90
1,202401,B,R1,50
2,202402,A,R1,91
3,202402,B,R1,51
`

func testLayout() groups.Layout {
	return groups.Layout{Groups: []groups.Entry{
		{Key: "value_kpi", Title: "Raw Value KPI", Source: groups.SourceRaw, Start: 1, End: 3},
		{Key: "okr", Title: "Related OKR Target Q1", Source: groups.SourceOKR},
		{Key: "alert_status", Title: "Alert Status KPI", Source: groups.SourceRaw, Columns: []string{"status_a"}},
	}}
}

func inputs() Inputs {
	return Inputs{
		Healthiness: Source{Name: "hi.csv", Data: []byte(rawCSV)},
		OKR:         Source{Name: "okr.csv", Data: []byte(okrCSV)},
	}
}

func newPipeline(mode filter.Mode) *Pipeline {
	return New(testLayout(), mode, dataset.Options{}, zerolog.Nop())
}

func keys(t *testing.T, s Section) []dataset.Key {
	t.Helper()
	return s.Table.Keys()
}

func TestRun_NoFilters(t *testing.T) {
	res, err := newPipeline(filter.Override).Run(context.Background(), inputs(), filter.Selection{})
	require.NoError(t, err)

	var got []string
	for _, s := range res.Sections {
		got = append(got, s.Key)
	}
	require.Equal(t, []string{"index", "chart", "value_kpi", "okr", "alert_status"}, got)

	idx, _ := res.Section(KeyIndex)
	require.Equal(t, []string{"yearweek", "city", "region", dataset.ColIndex}, idx.Table.Names())
	require.Equal(t, 4, idx.Table.Nrow())

	kpi, _ := res.Section("value_kpi")
	require.Equal(t, []string{"yearweek", "city", "region", "kpi_a", "kpi_b"}, kpi.Table.Names())
	require.Equal(t, []string{"202401", "A", "R1", "1", "2"}, kpi.Table.Rows()[0])

	require.Equal(t, []string{"202401", "202402"}, res.Options.Periods)
	require.Equal(t, []string{"A", "B"}, res.Options.Cities)
	require.Nil(t, res.BucketCities)
}

func TestRun_BucketScenario(t *testing.T) {
	sel := filter.Selection{Buckets: []string{"75 - 84.99"}}
	res, err := newPipeline(filter.Override).Run(context.Background(), inputs(), sel)
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, res.BucketCities)

	idx, _ := res.Section(KeyIndex)
	for _, k := range keys(t, idx) {
		require.Equal(t, "A", k.City)
	}
	require.Equal(t, 2, idx.Table.Nrow())

	// Every group carries the same row keys as the index section.
	for _, key := range []string{"value_kpi", "okr", "alert_status"} {
		s, ok := res.Section(key)
		require.True(t, ok, key)
		require.Equal(t, keys(t, idx), keys(t, s), key)
	}

	chart := res.Chart()
	require.NotNil(t, chart)
	require.Len(t, chart.Lines, 1)
	require.Equal(t, "A", chart.Lines[0].City)
	require.Equal(t, []Point{{Period: "202401", Value: 80}, {Period: "202402", Value: 82}}, chart.Lines[0].Points)
}

func TestRun_CityAndBucket(t *testing.T) {
	sel := filter.Selection{Cities: []string{"B"}, Buckets: []string{"75 - 84.99"}}
	res, err := newPipeline(filter.Override).Run(context.Background(), inputs(), sel)
	require.NoError(t, err)

	idx, _ := res.Section(KeyIndex)
	require.Equal(t, []dataset.Key{
		{Period: "202401", City: "A", Region: "R1"},
		{Period: "202402", City: "A", Region: "R1"},
	}, keys(t, idx))

	kpi, _ := res.Section("value_kpi")
	for _, k := range keys(t, kpi) {
		require.Equal(t, "B", k.City)
	}
}

func TestRun_StopsAtMissingOKR(t *testing.T) {
	in := inputs()
	in.OKR = Source{}
	res, err := newPipeline(filter.Override).Run(context.Background(), in, filter.Selection{})
	require.ErrorIs(t, err, ErrNoOKR)
	require.NotNil(t, res)

	var got []string
	for _, s := range res.Sections {
		got = append(got, s.Key)
	}
	require.Equal(t, []string{"index", "chart", "value_kpi"}, got)
}

func TestRun_NoUpload(t *testing.T) {
	res, err := newPipeline(filter.Override).Run(context.Background(), Inputs{}, filter.Selection{})
	require.True(t, errors.Is(err, ErrNoUpload))
	require.Empty(t, res.Sections)
}

func TestRun_BadIndexFile(t *testing.T) {
	in := inputs()
	in.Healthiness.Data = []byte(",yearweek,location\n0,202401,A\n")
	res, err := newPipeline(filter.Override).Run(context.Background(), in, filter.Selection{})
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
	require.Empty(t, res.Sections)
}

func TestRun_MissingNamedColumnStopsPass(t *testing.T) {
	p := newPipeline(filter.Override)
	p.Layout.Groups[2].Columns = []string{"status_z"}
	res, err := p.Run(context.Background(), inputs(), filter.Selection{})
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
	require.Len(t, res.Sections, 4)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newPipeline(filter.Override).Run(ctx, inputs(), filter.Selection{})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Sections, 1)
}

func TestRun_RoundTripReproducesTable(t *testing.T) {
	res, err := newPipeline(filter.Override).Run(context.Background(), inputs(), filter.Selection{})
	require.NoError(t, err)
	okr, _ := res.Section("okr")
	want, err := dataset.LoadOKR("okr.csv", []byte(okrCSV), dataset.Options{})
	require.NoError(t, err)
	require.Equal(t, want.Rows(), okr.Table.Rows())
}

func TestRun_DefaultLayoutOnNarrowFile(t *testing.T) {
	p := New(groups.DefaultLayout(), filter.Override, dataset.Options{}, zerolog.Nop())
	res, err := p.Run(context.Background(), inputs(), filter.Selection{Periods: []string{"202402"}})
	require.NoError(t, err)
	require.Len(t, res.Sections, 2+len(groups.DefaultLayout().Groups))

	score, ok := res.Section("score")
	require.True(t, ok)
	require.Equal(t, dataset.KeyColumns, score.Table.Names())
	require.Equal(t, 2, score.Table.Nrow())
}

func TestOptions_Cascade(t *testing.T) {
	opts, err := newPipeline(filter.Override).Options(context.Background(), inputs(), filter.Selection{Regions: []string{"R9"}})
	require.NoError(t, err)
	require.Equal(t, []string{"R1"}, opts.Regions)
	require.Empty(t, opts.Cities)
}

func TestBuildChart_SkipsMissingValues(t *testing.T) {
	tbl, err := dataset.LoadHealthiness("hi.csv", []byte(",yearweek,location,region,Healthiness_Index_(%)\n0,202402,B,R1,\n1,202401,B,R1,10\n2,202401,A,R1,20\n"), dataset.Options{})
	require.NoError(t, err)
	c, err := BuildChart(tbl)
	require.NoError(t, err)
	require.Equal(t, []string{"202401", "202402"}, c.Periods)
	require.Equal(t, "B", c.Lines[0].City)
	require.Equal(t, []Point{{Period: "202401", Value: 10}}, c.Lines[0].Points)
	lo, hi, ok := c.Bounds()
	require.True(t, ok)
	require.Equal(t, 10.0, lo)
	require.Equal(t, 20.0, hi)
	require.Equal(t, 1, c.PeriodIndex()["202402"])
}
