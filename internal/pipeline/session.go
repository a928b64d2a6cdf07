package pipeline

import (
	"context"

	"github.com/jonathan/report-renderer/internal/browser"
	"github.com/jonathan/report-renderer/internal/types"
)

// Session is the part of a rendering session the generator drives.
type Session interface {
	Navigate(ctx context.Context, url string, strategy browser.Strategy) error
	WaitFor(ctx context.Context, selector string) error
	HasContent(ctx context.Context) (bool, error)
	PrintPDF(ctx context.Context, opts browser.PDFOptions) ([]byte, error)
	Close() error
}

// SessionFactory acquires a fresh, isolated session per attempt.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// LauncherSessions adapts a browser launcher to SessionFactory.
func LauncherSessions(l *browser.Launcher) SessionFactory {
	return SessionFactoryFunc(func(ctx context.Context) (Session, error) {
		s, err := l.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// ArtifactStore stores rendered PDFs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// JobStore is the slice of the job store the generator writes to.
type JobStore interface {
	UpdateJob(ctx context.Context, id string, update types.JobUpdate) error
}
