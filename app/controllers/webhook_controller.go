package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/shravanlabs/shravan/app/models"
	"github.com/shravanlabs/shravan/internal/pkg/billing"
	"github.com/shravanlabs/shravan/internal/pkg/database"
	"github.com/shravanlabs/shravan/internal/pkg/env"
	"github.com/shravanlabs/shravan/internal/pkg/metrics/counter"
)

const webhookTimeout = 15 * time.Second

// countWebhook records the delivery outcome, best-effort.
func countWebhook(provider, outcome string) {
	if err := counter.AddWebhookResult(provider, outcome); err != nil {
		log.Debugf("[Webhook] counter increment failed: %v", err)
	}
}

// HandleRazorpayWebhook processes the card/UPI processor's webhook stream:
// HMAC verification over the raw body, then normalization, idempotent upsert,
// cache invalidation and fan-out. Event types the engine does not act on are
// acknowledged, never rejected, so the provider stops redelivering them.
func HandleRazorpayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Razorpay-Signature"))

	// Verification runs against the literal request bytes. The bypass is
	// gated on APP_ENV and exists for local testing only.
	verifier := billing.HMACVerifier{
		Secret: env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		Bypass: env.IsDev(),
	}
	if !verifier.Verify(rawBody, signature) {
		countWebhook(models.ProviderRazorpay, counter.OutcomeRejected)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := billing.ParseRazorpayEvent(rawBody)
	if err != nil {
		// Malformed payloads are acknowledged: retrying will not fix them.
		log.Warnf("[Webhook] dropping malformed razorpay payload: %v", err)
		countWebhook(models.ProviderRazorpay, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	client := billing.NewRazorpayClientFromEnv()
	svc.SetPlanLookup(client)

	switch {
	case event.IsPaymentEvent():
		in, err := billing.NormalizeRazorpayPayment(event, rawBody)
		if err != nil {
			log.Warnf("[Webhook] razorpay payment event without payment entity: %v", err)
			countWebhook(models.ProviderRazorpay, counter.OutcomeIgnored)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		if _, err := svc.RecordPayment(ctx, in, client); err != nil {
			countWebhook(models.ProviderRazorpay, counter.OutcomeFailed)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_persist_failed"})
		}
		countWebhook(models.ProviderRazorpay, counter.OutcomeProcessed)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})

	case event.IsSubscriptionEvent():
		update, err := billing.NormalizeRazorpaySubscription(event, rawBody)
		if err != nil {
			log.Warnf("[Webhook] razorpay event %s without subscription id, dropping", event.Event)
			countWebhook(models.ProviderRazorpay, counter.OutcomeIgnored)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		if _, _, err := svc.ApplySubscriptionUpdate(ctx, update); err != nil {
			countWebhook(models.ProviderRazorpay, counter.OutcomeFailed)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
		}
		countWebhook(models.ProviderRazorpay, counter.OutcomeProcessed)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})

	default:
		countWebhook(models.ProviderRazorpay, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
}

// HandleRevenueCatWebhook processes the mobile-store billing aggregator's
// webhook stream, authenticated by shared-secret bearer comparison.
func HandleRevenueCatWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))

	// Fails closed: with no configured secret every event is refused.
	verifier := billing.BearerVerifier{
		Secret: env.GetEnv("REVENUECAT_WEBHOOK_SECRET", ""),
	}
	if !verifier.Verify(rawBody, authorization) {
		countWebhook(models.ProviderRevenueCat, counter.OutcomeRejected)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	event, err := billing.ParseRevenueCatEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] dropping malformed revenuecat payload: %v", err)
		countWebhook(models.ProviderRevenueCat, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	if !billing.IsActionableRevenueCatEvent(event.Event.Type) {
		countWebhook(models.ProviderRevenueCat, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	update, err := billing.NormalizeRevenueCatEvent(event, rawBody)
	if err != nil {
		if errors.Is(err, billing.ErrMissingSubscriptionID) {
			log.Warnf("[Webhook] revenuecat event %s without subscription id, dropping", event.Event.Type)
		}
		countWebhook(models.ProviderRevenueCat, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	if _, _, err := svc.ApplySubscriptionUpdate(ctx, update); err != nil {
		countWebhook(models.ProviderRevenueCat, counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	countWebhook(models.ProviderRevenueCat, counter.OutcomeProcessed)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
