package dedup

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// ErrStoreMissing is returned by Store.Load when nothing has been persisted yet.
var ErrStoreMissing = errors.New("known-set store does not exist yet")

// Store is the durable backing of a KnownSet. It only ever grows.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Append(ctx context.Context, url string) error
	Close() error
}

// KnownSet holds every posting URL already processed.
// Only the pipeline adds to it; reads from other goroutines are safe.
type KnownSet struct {
	store Store
	seen  mapset.Set[string]
	log   logrus.FieldLogger
}

func NewKnownSet(store Store, log logrus.FieldLogger) *KnownSet {
	return &KnownSet{
		store: store,
		seen:  mapset.NewSet[string](),
		log:   log,
	}
}

// Load reads the store into memory. A store that does not exist yet yields an
// empty set.
func (k *KnownSet) Load(ctx context.Context) error {
	urls, err := k.store.Load(ctx)
	if errors.Is(err, ErrStoreMissing) {
		k.log.Info("📋 Known links store not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load known links: %w", err)
	}

	for _, url := range urls {
		if url != "" {
			k.seen.Add(url)
		}
	}
	k.log.WithField("count", k.seen.Cardinality()).Info("📋 Loaded known links")
	return nil
}

// Contains checks if a URL has already been processed.
func (k *KnownSet) Contains(url string) bool {
	return k.seen.Contains(url)
}

// Unknown returns the candidates not yet in the set, keeping their order.
func (k *KnownSet) Unknown(candidates []string) []string {
	fresh := mapset.NewSet(candidates...).Difference(k.seen)

	result := make([]string, 0, fresh.Cardinality())
	for _, url := range candidates {
		if fresh.Contains(url) {
			result = append(result, url)
			fresh.Remove(url)
		}
	}
	return result
}

// Add records url in memory and appends it to the store. Already known URLs
// are not written twice.
func (k *KnownSet) Add(ctx context.Context, url string) error {
	if !k.seen.Add(url) {
		return nil
	}
	if err := k.store.Append(ctx, url); err != nil {
		return fmt.Errorf("persist %s: %w", url, err)
	}
	return nil
}

func (k *KnownSet) Len() int {
	return k.seen.Cardinality()
}
