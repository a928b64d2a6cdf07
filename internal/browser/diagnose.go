package browser

import (
	"context"
	"time"

	"github.com/jonathan/report-renderer/internal/types"
)

// DiagnoseTimeout bounds the navigation of a URL probe.
const DiagnoseTimeout = 30 * time.Second

// Diagnose opens url in a minimal session and reports load time, title and
// final URL. Navigation failures are part of the result; the returned error is
// reserved for failing to start the browser at all.
func (l *Launcher) Diagnose(ctx context.Context, url string) (*types.DiagnoseResult, error) {
	session, err := l.newMinimalSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = session.Close()
	}()

	start := time.Now()
	result := &types.DiagnoseResult{URL: url}

	navCtx, cancel := context.WithTimeout(ctx, DiagnoseTimeout)
	defer cancel()

	if err := session.Navigate(navCtx, url, StrategyLoad); err != nil {
		result.Error = err.Error()
		result.LoadTime = time.Since(start).Milliseconds()
		result.Timestamp = time.Now().UTC()
		return result, nil
	}
	result.LoadTime = time.Since(start).Milliseconds()

	infoCtx, cancelInfo := context.WithTimeout(ctx, 5*time.Second)
	defer cancelInfo()
	if result.Title, err = session.Title(infoCtx); err != nil {
		l.logger.Debug("could not read title", "url", url, "error", err)
	}
	if result.FinalURL, err = session.Location(infoCtx); err != nil {
		l.logger.Debug("could not read location", "url", url, "error", err)
	}

	result.Success = true
	result.Timestamp = time.Now().UTC()
	return result, nil
}
