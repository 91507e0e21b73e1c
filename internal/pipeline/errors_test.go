package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/internal/groups"
	"github.com/vinodismyname/hidash/pkg/dasherr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want dasherr.Code
	}{
		{ErrNoUpload, dasherr.MissingUpload},
		{ErrNoOKR, dasherr.MissingUpload},
		{fmt.Errorf("pipeline: score: %w", fmt.Errorf("%w \"x\"", dataset.ErrMissingColumn)), dasherr.MissingColumn},
		{fmt.Errorf("%w: .pdf", dataset.ErrUnsupportedFormat), dasherr.UnsupportedFormat},
		{fmt.Errorf("%w: a.csv", dataset.ErrEmptyUpload), dasherr.ParseFailed},
		{fmt.Errorf("%w %q", filter.ErrUnknownBucket, "1-2"), dasherr.UnknownBucket},
		{context.DeadlineExceeded, dasherr.Timeout},
		{fmt.Errorf("%w: parse delimited: bare quote", dataset.ErrMalformed), dasherr.ParseFailed},
		{errors.New("dataset: not a sentinel"), dasherr.FilterFailed},
		{errors.New("boom"), dasherr.FilterFailed},
		{dasherr.New(dasherr.InvalidHandle, ""), dasherr.InvalidHandle},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		require.NotNil(t, got, tc.err)
		require.Equal(t, tc.want, got.Code, tc.err.Error())
	}
	require.Nil(t, Classify(nil))
}

func TestClassify_WrappedParseErrors(t *testing.T) {
	p := New(groups.DefaultLayout(), filter.Override, dataset.Options{}, zerolog.Nop())

	ragged := ",yearweek,location,region,Healthiness_Index_(%)\n0,202401,A,R1,80,extra\n"
	_, err := p.Run(context.Background(), Inputs{Healthiness: Source{Name: "hi.csv", Data: []byte(ragged)}}, filter.Selection{})
	require.ErrorIs(t, err, dataset.ErrRaggedRows)
	require.Equal(t, dasherr.ParseFailed, Classify(fmt.Errorf("pipeline: value_kpi: %w", err)).Code)

	text := ",yearweek,location,region,Healthiness_Index_(%)\n0,202401,A,R1,eighty\n"
	_, err = p.Run(context.Background(), Inputs{Healthiness: Source{Name: "hi.csv", Data: []byte(text)}}, filter.Selection{})
	require.ErrorIs(t, err, dataset.ErrBadIndexValue)
	require.Equal(t, dasherr.ParseFailed, Classify(fmt.Errorf("pipeline: score: %w", err)).Code)
}
