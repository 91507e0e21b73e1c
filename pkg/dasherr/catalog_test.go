package dasherr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dataset: missing column \"region\"")
	err := fmt.Errorf("handler: %w", Wrap(MissingColumn, cause))

	require.ErrorIs(t, err, cause)
	e, ok := As(err)
	require.True(t, ok)
	require.Equal(t, MissingColumn, e.Code)
	require.Equal(t, http.StatusUnprocessableEntity, e.Status())
	require.Equal(t, `MISSING_COLUMN: dataset: missing column "region"`, e.Error())
	require.Nil(t, Wrap(Validation, nil))
}

func TestToBody(t *testing.T) {
	b := New(BusyResource, "").ToBody()
	require.Equal(t, BusyResource, b.Code)
	require.Equal(t, "concurrent request limit reached", b.Message)
	require.True(t, b.Retryable)
	require.NotEmpty(t, b.NextSteps)

	unknown := New(Code("SOMETHING"), "odd")
	require.Equal(t, http.StatusInternalServerError, unknown.Status())
	require.Equal(t, "odd", unknown.ToBody().Message)
}

func TestToolResultCarriesGuidance(t *testing.T) {
	text := toolText(t, Wrapf(UnknownBucket, "range %q", "45 - 49").ToolResult())
	require.True(t, strings.HasPrefix(text, `UNKNOWN_BUCKET: range "45 - 49"`))
	require.Contains(t, text, "nextSteps:")
}

func TestFromText(t *testing.T) {
	require.True(t, strings.HasPrefix(toolText(t, FromText("")), "VALIDATION: invalid inputs"))
	require.True(t, strings.HasPrefix(toolText(t, FromText("TIMEOUT: slow")), "TIMEOUT: slow | nextSteps"))
	require.Equal(t, "CUSTOM: x", toolText(t, FromText("CUSTOM: x")))
}

func TestCatalogComplete(t *testing.T) {
	for code, e := range catalog {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, code)
		require.NotZero(t, e.Status, code)
	}
}
