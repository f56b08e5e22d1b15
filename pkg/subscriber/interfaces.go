package subscriber

//go:generate mockgen -destination=mock_subscriber.go -package=subscriber github.com/emberhome/nestlink/pkg/subscriber Clock,Ticker,NestClient,ObjectStore,Notifier

import (
	"context"
	"time"

	"github.com/emberhome/nestlink/pkg/models"
)

// Clock abstracts time-related operations so backoff delays are
// assertable without sleeping in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// NestClient is the slice of the API client the subscription loop
// drives.
type NestClient interface {
	Subscribe(ctx context.Context, cursor []models.CursorEntry) (*models.SubscribeResponse, error)
	Reauthenticate(ctx context.Context) (*models.Session, error)
}

// ObjectStore receives merged deltas and supplies the revision cursor
// that scopes the next long-poll request.
type ObjectStore interface {
	Merge(buckets []models.Bucket) []string
	Cursor() []models.CursorEntry
}

// Notifier delivers change notifications for merged object keys.
type Notifier interface {
	NotifyChanged(ctx context.Context, keys []string)
}
