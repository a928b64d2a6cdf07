//go:build integration
// +build integration

package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportPage = `<html><head><title>Report</title></head><body>
<div id="report-home-page">home</div>
<div id="Best Time Chart loc-1">chart</div>
</body></html>`

func newTestLauncher(t *testing.T) *Launcher {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser integration test")
	}
	return NewLauncher(Options{ExecPath: ResolveExecPath("", ""), LaunchTimeout: 20 * time.Second})
}

func TestSession_RenderFlow_Integration(t *testing.T) {
	l := newTestLauncher(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(reportPage))
	}))
	defer srv.Close()

	ctx := context.Background()
	session, err := l.NewSession(ctx)
	if err != nil {
		t.Skipf("Skipping: could not start Chrome: %v", err)
	}
	defer session.Close()

	navCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	require.NoError(t, session.Navigate(navCtx, srv.URL+"/render-chart?jobId=x", StrategyLoad))

	require.NoError(t, session.WaitFor(navCtx, `#report-home-page`))
	require.NoError(t, session.WaitFor(navCtx, `[id="Best Time Chart loc-1"]`))

	hasContent, err := session.HasContent(navCtx)
	require.NoError(t, err)
	assert.True(t, hasContent)

	pdf, err := session.PrintPDF(navCtx, PDFOptions{PrintBackground: true})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	err = session.Navigate(navCtx, srv.URL+"/missing", StrategyLoad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "close is idempotent")
}

func TestDiagnose_Integration(t *testing.T) {
	l := newTestLauncher(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reportPage))
	}))
	defer srv.Close()

	result, err := l.Diagnose(context.Background(), srv.URL)
	if err != nil {
		t.Skipf("Skipping: could not start Chrome: %v", err)
	}
	assert.True(t, result.Success)
	assert.Equal(t, "Report", result.Title)
	assert.Contains(t, result.FinalURL, srv.URL)
}
