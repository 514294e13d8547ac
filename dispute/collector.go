package dispute

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"taskflow/reputation"
)

// CollectorRepository enumerates the read queries the collector fans out.
type CollectorRepository interface {
	GetDisputeContext(ctx context.Context, disputeID string) (Record, BookingContext, error)
	ListDisputeEvidence(ctx context.Context, disputeID string) ([]EvidenceItem, error)
	ListWorkEvidence(ctx context.Context, bookingID string) ([]EvidenceItem, error)
	ListCheckins(ctx context.Context, bookingID string) ([]CheckinEvent, error)
	ListChecklist(ctx context.Context, bookingID string) ([]ChecklistCompletion, error)
	ListAuditEvents(ctx context.Context, bookingID string) ([]AuditEvent, error)
}

// ProfileSource resolves a party's reputation snapshot.
type ProfileSource interface {
	PartyProfile(ctx context.Context, userID string) (PartyProfile, error)
}

// Collector is a pure read aggregator: it owns no state and mutates nothing.
// The dispute context fetch is the only fatal read; every other source
// degrades to empty data on failure, since partial evidence is a normal
// state for an in-progress dispute.
type Collector struct {
	repo     CollectorRepository
	profiles ProfileSource
	log      *slog.Logger
}

// NewCollector builds a collector. profiles may be nil, which leaves both
// party summaries all-null.
func NewCollector(repo CollectorRepository, profiles ProfileSource, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{repo: repo, profiles: profiles, log: log}
}

// Collect gathers all evidence sources for one dispute. The six secondary
// reads are independent of one another and run concurrently.
func (c *Collector) Collect(ctx context.Context, disputeID string) (Bundle, error) {
	rec, booking, err := c.repo.GetDisputeContext(ctx, disputeID)
	if err != nil {
		return Bundle{}, err
	}

	bundle := Bundle{Dispute: rec, Booking: booking}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bundle.DisputeEvidence = c.degrade(gctx, "dispute_evidence", disputeID, func(ctx context.Context) ([]EvidenceItem, error) {
			return c.repo.ListDisputeEvidence(ctx, disputeID)
		})
		return nil
	})
	g.Go(func() error {
		bundle.WorkEvidence = c.degrade(gctx, "work_evidence", disputeID, func(ctx context.Context) ([]EvidenceItem, error) {
			return c.repo.ListWorkEvidence(ctx, booking.BookingID)
		})
		return nil
	})
	g.Go(func() error {
		events, err := c.repo.ListCheckins(gctx, booking.BookingID)
		if err != nil {
			c.warn("checkins", disputeID, err)
			return nil
		}
		bundle.Checkins = events
		return nil
	})
	g.Go(func() error {
		items, err := c.repo.ListChecklist(gctx, booking.BookingID)
		if err != nil {
			c.warn("checklist", disputeID, err)
			return nil
		}
		bundle.Checklist = items
		return nil
	})
	g.Go(func() error {
		events, err := c.repo.ListAuditEvents(gctx, booking.BookingID)
		if err != nil {
			c.warn("audit_events", disputeID, err)
			return nil
		}
		bundle.AuditEvents = events
		return nil
	})
	g.Go(func() error {
		bundle.Giver = c.party(gctx, disputeID, booking.GiverID)
		bundle.Doer = c.party(gctx, disputeID, booking.DoerID)
		return nil
	})

	// Goroutines only record degradations, so Wait cannot fail; it is the
	// barrier before normalization.
	_ = g.Wait()

	return bundle, nil
}

func (c *Collector) degrade(ctx context.Context, source, disputeID string, fetch func(context.Context) ([]EvidenceItem, error)) []EvidenceItem {
	items, err := fetch(ctx)
	if err != nil {
		c.warn(source, disputeID, err)
		return nil
	}
	return items
}

func (c *Collector) party(ctx context.Context, disputeID, userID string) *PartyProfile {
	if c.profiles == nil || userID == "" {
		return nil
	}
	profile, err := c.profiles.PartyProfile(ctx, userID)
	if err != nil {
		c.warn("party_profile", disputeID, err)
		return nil
	}
	return &profile
}

func (c *Collector) warn(source, disputeID string, err error) {
	c.log.Warn("evidence source degraded to empty",
		"source", source,
		"dispute_id", disputeID,
		"error", err,
	)
}

// ReputationProfiles adapts the reputation service to the collector's
// ProfileSource. A missing reputation row is not an error; it maps to an
// all-null profile upstream.
type ReputationProfiles struct {
	svc *reputation.Service
}

// NewReputationProfiles wraps a reputation service.
func NewReputationProfiles(svc *reputation.Service) *ReputationProfiles {
	return &ReputationProfiles{svc: svc}
}

// PartyProfile maps a reputation snapshot onto the engine's profile shape.
func (r *ReputationProfiles) PartyProfile(ctx context.Context, userID string) (PartyProfile, error) {
	snap, err := r.svc.GetByUserID(ctx, userID)
	if errors.Is(err, reputation.ErrNotFound) {
		// No history yet: all-null profile, not a degradation.
		return PartyProfile{UserID: userID}, nil
	}
	if err != nil {
		return PartyProfile{}, err
	}
	return PartyProfile{
		UserID:         snap.UserID,
		TrustScore:     snap.TrustScore,
		Rating:         snap.Rating,
		CompletedTasks: snap.CompletedTasks,
	}, nil
}
