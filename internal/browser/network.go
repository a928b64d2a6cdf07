package browser

import (
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// renderChartMarker identifies responses from the report rendering route.
const renderChartMarker = "render-chart"

// listen logs failed requests and render-chart responses, and records the
// status of the latest document response for navigation checks.
func (s *Session) listen() {
	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			s.mu.Lock()
			s.requestURLs[e.RequestID] = e.Request.URL
			s.mu.Unlock()

		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument {
				s.mu.Lock()
				s.documentStatus = e.Response.Status
				s.mu.Unlock()
			}
			if strings.Contains(e.Response.URL, renderChartMarker) {
				s.logger.Info("render response", "status", e.Response.Status, "url", e.Response.URL)
			}

		case *network.EventLoadingFailed:
			s.mu.Lock()
			url := s.requestURLs[e.RequestID]
			delete(s.requestURLs, e.RequestID)
			s.mu.Unlock()
			if e.Canceled {
				return
			}
			s.logger.Warn("request failed", "url", url, "error", e.ErrorText, "type", e.Type.String())

		case *network.EventLoadingFinished:
			s.mu.Lock()
			delete(s.requestURLs, e.RequestID)
			s.mu.Unlock()
		}
	})
}

func (s *Session) resetDocumentStatus() {
	s.mu.Lock()
	s.documentStatus = 0
	s.mu.Unlock()
}

func (s *Session) lastDocumentStatus() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentStatus
}
