// Package hot detects high-traffic campaigns with a coarse per-tenant
// frequency counter over fixed ten minute buckets. Campaign ids are used
// verbatim as hash fields, so there are no collisions between campaigns.
package hot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/constants"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
	"go.uber.org/zap"
)

const (
	BucketLength     = 10 * time.Minute
	HotSetTTL        = 2 * BucketLength
	DefaultThreshold = 50
)

// Bucket returns the index of the bucket containing t.
func Bucket(t time.Time) int64 {
	return t.Unix() / int64(BucketLength/time.Second)
}

type Detector struct {
	store     counter.Store
	threshold int64
	now       func() time.Time
	log       *zap.SugaredLogger
}

type Option func(*Detector)

// WithClock overrides the wall clock used to pick buckets.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func NewDetector(store counter.Store, threshold int64, log *zap.SugaredLogger, opts ...Option) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	d := &Detector{store: store, threshold: threshold, now: time.Now, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Threshold() int64 { return d.threshold }

// RegisterEvent counts one event for campaignID in the current bucket. The
// increment that reaches the threshold adds the campaign to the tenant's hot
// set and restarts the set's expiry; later increments in the same bucket do not.
func (d *Detector) RegisterEvent(ctx context.Context, tenantID, campaignID uuid.UUID) error {
	bucket := Bucket(d.now())
	bucketKey := fmt.Sprintf(constants.HotBucketKey, tenantID, bucket)

	count, err := d.store.HashIncrement(ctx, bucketKey, campaignID.String(), BucketLength)
	if err != nil {
		return fmt.Errorf("register event for campaign %s: %w", campaignID, err)
	}
	if count != d.threshold {
		return nil
	}

	if err := d.store.MembershipAdd(ctx, hotSetKey(tenantID), campaignID.String(), HotSetTTL); err != nil {
		return fmt.Errorf("promote campaign %s: %w", campaignID, err)
	}
	d.log.Infow("[CMS] campaign is hot", "tenant_id", tenantID, "campaign_id", campaignID, "bucket", bucket, "count", count)
	return nil
}

// IsHotCampaign is a read-only membership test.
func (d *Detector) IsHotCampaign(ctx context.Context, tenantID, campaignID uuid.UUID) (bool, error) {
	ok, err := d.store.MembershipTest(ctx, hotSetKey(tenantID), campaignID.String())
	if err != nil {
		return false, fmt.Errorf("hot lookup for campaign %s: %w", campaignID, err)
	}
	return ok, nil
}

// HotCampaigns lists the tenant's hot campaign ids.
func (d *Detector) HotCampaigns(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	return d.store.MembershipList(ctx, hotSetKey(tenantID))
}

// TotalHotCampaigns sums hot-set sizes over all tenants. It scans the key
// space and is meant for metrics polling only.
func (d *Detector) TotalHotCampaigns(ctx context.Context) (int64, error) {
	keys, err := d.store.ScanKeys(ctx, constants.HotSetPattern)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, k := range keys {
		n, err := d.store.Cardinality(ctx, k)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func hotSetKey(tenantID uuid.UUID) string {
	return fmt.Sprintf(constants.HotSetKey, tenantID)
}
