package report

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigbench/sigctl/internal/config"
	"github.com/sigbench/sigctl/pkg/file"
	"github.com/sigbench/sigctl/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(true)
	m.Run()
}

func testClient(t *testing.T) *Client {
	t.Helper()

	c := NewClient(config.ReportConfig{
		Url:        "https://collector.example/api/",
		SensorName: "bench1",
		Username:   "sensor",
		Password:   "secret",
	}, true)
	require.True(t, c.Enabled())

	httpmock.ActivateNonDefault(c.GetClient().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return c
}

func TestDisabledClientDropsEverything(t *testing.T) {
	c := NewClient(config.ReportConfig{}, false)

	assert.False(t, c.Enabled())
	assert.NoError(t, c.PutStatus(context.Background(), RunStatus{RunID: "x"}))
	assert.NoError(t, c.PostRunData(context.Background(), "x", "/does/not/matter.zip"))
}

func TestPutStatus(t *testing.T) {
	c := testClient(t)

	httpmock.RegisterResponder("PUT", "https://collector.example/api/runs/update/bench1",
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewStringResponse(200, ""), nil
		})

	err := c.PutStatus(context.Background(), RunStatus{
		RunID:     "run-1",
		Operation: "capture",
		Success:   true,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestPutStatusServerError(t *testing.T) {
	c := testClient(t)

	httpmock.RegisterResponder("PUT", "https://collector.example/api/runs/update/bench1",
		httpmock.NewStringResponder(500, "boom"))

	err := c.PutStatus(context.Background(), RunStatus{RunID: "run-2"})

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, 500, respErr.Code)
}

func TestPostRunDataUploadsArchive(t *testing.T) {
	c := testClient(t)

	archive := filepath.Join(t.TempDir(), "result.zip")
	payload := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, file.WriteTo(payload, "iq-samples"))
	require.NoError(t, file.CreateArchive(archive, []string{payload}))

	var gotMD5 string
	httpmock.RegisterResponder("POST", `=~^https://collector\.example/api/data/upload/bench1/run-3`,
		func(req *http.Request) (*http.Response, error) {
			gotMD5 = req.URL.Query().Get("md5")
			return httpmock.NewStringResponse(200, ""), nil
		})

	require.NoError(t, c.PostRunData(context.Background(), "run-3", archive))
	assert.Len(t, gotMD5, 32)
}

func TestPostRunDataMissingArchive(t *testing.T) {
	c := testClient(t)

	err := c.PostRunData(context.Background(), "run-4", filepath.Join(t.TempDir(), "gone.zip"))
	assert.Error(t, err)
}
