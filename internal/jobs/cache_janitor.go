package jobs

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/docvault/docvault/internal/cache"
	"github.com/docvault/docvault/internal/store"
)

// CacheJanitor purges cache partitions whose version no longer exists.
// Partitions are recreatable, so sweeping aggressively is safe; a purge
// of a live partition only costs recomputation.
type CacheJanitor struct {
	store    store.Store
	cache    cache.Cache
	schedule string
}

func NewCacheJanitor(schedule string, st store.Store, c cache.Cache) *CacheJanitor {
	return &CacheJanitor{
		store:    st,
		cache:    c,
		schedule: schedule,
	}
}

func (j *CacheJanitor) Name() string {
	return "cache_janitor"
}

func (j *CacheJanitor) Schedule() string {
	return j.schedule
}

func (j *CacheJanitor) Run() {
	ctx := context.Background()

	partitions, err := j.cache.Partitions(ctx)
	if err != nil {
		logrus.Errorf("cache janitor: listing partitions failed: %v", err)
		return
	}

	versions, err := j.store.ListAllVersions(ctx)
	if err != nil {
		logrus.Errorf("cache janitor: listing versions failed: %v", err)
		return
	}

	live := mapset.NewSet[string]()
	for _, version := range versions {
		live.Add(version.CachePartition())
	}

	removed := 0
	for _, partition := range partitions {
		if !strings.HasPrefix(partition, "version-") {
			continue
		}
		// Page partitions extend their version partition key, so prefix
		// membership decides liveness for both.
		if liveParent(live, partition) {
			continue
		}

		if err := j.cache.Purge(ctx, partition); err != nil {
			logrus.Errorf("cache janitor: purging partition %s failed: %v", partition, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logrus.Infof("cache janitor removed %d orphaned partitions", removed)
	}
}

func liveParent(live mapset.Set[string], partition string) bool {
	if live.Contains(partition) {
		return true
	}

	for parent := range live.Iter() {
		if strings.HasPrefix(partition, parent+"-page-") {
			return true
		}
	}

	return false
}
