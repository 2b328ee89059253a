package billing

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shravanlabs/shravan/app/models"
	"github.com/shravanlabs/shravan/internal/pkg/cache"
	"github.com/shravanlabs/shravan/internal/pkg/realtime"
	"gorm.io/gorm"
)

const lookupTimeout = 5 * time.Second

// InvoiceLookup resolves which subscription a charge belongs to. Best-effort:
// a failed lookup degrades the payment record, never the webhook.
type InvoiceLookup interface {
	GetInvoice(ctx context.Context, invoiceID string) (*RazorpayInvoice, error)
}

// PlanLookup fetches plan details for event enrichment.
type PlanLookup interface {
	GetPlan(ctx context.Context, planID string) (*RazorpayPlan, error)
}

// Service drives the reconciliation pipeline past verification: store upsert,
// cache invalidation, and real-time fan-out. Cache and fan-out failures are
// non-fatal to the webhook's own success; a stale cache entry self-expires.
type Service struct {
	repo       Repository
	emitter    *realtime.Emitter
	invalidate func(userID uint)
	plans      PlanLookup
}

// NewService creates a billing service from an injected repository, wired to
// the global emitter and cache invalidator.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		emitter:    realtime.GetEmitter(),
		invalidate: cache.InvalidateUserCaches,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// NewServiceWith wires explicit collaborators, used by tests.
func NewServiceWith(repo Repository, emitter *realtime.Emitter, invalidate func(uint)) *Service {
	return &Service{repo: repo, emitter: emitter, invalidate: invalidate}
}

// SetPlanLookup attaches best-effort plan enrichment for emitted events.
func (s *Service) SetPlanLookup(plans PlanLookup) {
	s.plans = plans
}

// ApplySubscriptionUpdate upserts a normalized update and propagates the
// change to dependent caches and any connected streams. Persist errors are
// logged with full context and returned as a plain failure; nothing panics
// past this boundary.
func (s *Service) ApplySubscriptionUpdate(ctx context.Context, update SubscriptionUpdate) (*models.Subscription, bool, error) {
	sub, created, err := s.repo.UpsertSubscription(update)
	if err != nil {
		log.Errorf("[Billing] subscription upsert failed: provider=%s subscription_id=%s status=%s user_id=%v err=%v",
			update.Provider, update.SubscriptionID, update.Status, update.UserID, err)
		return nil, false, err
	}

	if sub.UserID != nil {
		// Fire-and-forget: a failed purge is logged inside and the entry
		// self-expires per its own TTL.
		s.invalidate(*sub.UserID)
		s.notifySubscriptionChange(ctx, sub, created)
	}

	return sub, created, nil
}

// UpdateSubscriptionStatus flips only the status plus side attributes and
// propagates the change the same way a full update does.
func (s *Service) UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string, extra map[string]interface{}) (*models.Subscription, error) {
	sub, err := s.repo.UpdateSubscriptionStatus(subscriptionID, status, extra)
	if err != nil {
		log.Errorf("[Billing] status update failed: subscription_id=%s status=%s err=%v", subscriptionID, status, err)
		return nil, err
	}

	if sub.UserID != nil {
		s.invalidate(*sub.UserID)
		s.notifySubscriptionChange(ctx, sub, false)
	}
	return sub, nil
}

func (s *Service) notifySubscriptionChange(ctx context.Context, sub *models.Subscription, created bool) {
	if s.emitter == nil || sub.UserID == nil {
		return
	}

	data := map[string]interface{}{
		"status":   sub.Status,
		"plan_id":  sub.PlanID,
		"provider": sub.Provider,
		"is_trial": sub.IsTrial,
	}
	if name := s.planName(ctx, sub); name != "" {
		data["plan_name"] = name
	}

	userID := *sub.UserID
	if created {
		s.emitter.EmitSubscriptionCreated(userID, sub.SubscriptionID, data)
	}

	switch sub.Status {
	case models.SubStatusActive, models.SubStatusResumed:
		s.emitter.EmitSubscriptionActivated(userID, sub.SubscriptionID, data)
	case models.SubStatusCancelled, models.SubStatusExpired:
		s.emitter.EmitSubscriptionCancelled(userID, sub.SubscriptionID, data)
	}
}

// planName fetches the provider's plan label, best-effort.
func (s *Service) planName(ctx context.Context, sub *models.Subscription) string {
	if s.plans == nil || sub.Provider != models.ProviderRazorpay || strings.TrimSpace(sub.PlanID) == "" {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	plan, err := s.plans.GetPlan(lookupCtx, sub.PlanID)
	if err != nil {
		log.Warnf("[Billing] plan lookup failed for %s: %v", sub.PlanID, err)
		return ""
	}
	return plan.Item.Name
}

// RecordPayment persists a charge attempt and announces the outcome. When the
// payment carries only an invoice reference, the subscription linkage is
// resolved through the invoice lookup; failure there leaves the linkage empty
// and the payment still recorded.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput, invoices InvoiceLookup) (*models.Payment, error) {
	if strings.TrimSpace(in.PaymentID) == "" {
		return nil, ErrMissingPaymentID
	}

	if in.SubscriptionID == "" && in.InvoiceID != "" && invoices != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		invoice, err := invoices.GetInvoice(lookupCtx, in.InvoiceID)
		cancel()
		if err != nil {
			log.Warnf("[Billing] invoice lookup failed for payment %s: %v", in.PaymentID, err)
		} else {
			in.SubscriptionID = invoice.SubscriptionID
		}
	}

	if in.UserID == nil && in.SubscriptionID != "" {
		if sub, err := s.repo.GetSubscriptionByExternalID(in.SubscriptionID); err == nil {
			in.UserID = sub.UserID
		}
	}

	payment := &models.Payment{
		PaymentID:      in.PaymentID,
		Status:         in.Status,
		Amount:         in.Amount,
		Currency:       in.Currency,
		UserID:         in.UserID,
		SubscriptionID: in.SubscriptionID,
		Provider:       models.ProviderRazorpay,
		Method:         in.Method,
		Metadata:       in.Metadata,
	}
	if _, err := s.repo.SavePayment(payment); err != nil {
		log.Errorf("[Billing] payment persist failed: payment_id=%s status=%s user_id=%v err=%v",
			in.PaymentID, in.Status, in.UserID, err)
		return nil, err
	}

	if payment.UserID != nil && s.emitter != nil {
		data := map[string]interface{}{
			"amount":   payment.Amount,
			"currency": payment.Currency,
			"status":   payment.Status,
		}
		if payment.Status == models.PaymentStatusFailed {
			s.emitter.EmitPaymentFailed(*payment.UserID, payment.PaymentID, data)
		} else {
			s.emitter.EmitPaymentSuccess(*payment.UserID, payment.PaymentID, data)
		}
	}

	return payment, nil
}

// GetUserSubscription returns the user's most recently updated subscription
// row, the one the product surfaces.
func (s *Service) GetUserSubscription(userID uint) (*models.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &subs[0], nil
}
