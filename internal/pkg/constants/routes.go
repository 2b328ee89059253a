package constants

// Static route constants
const (
	RazorpayWebhookRoute   = "/webhooks/razorpay"
	RevenueCatWebhookRoute = "/webhooks/revenuecat"
	EventsRoute            = "/events"
	UserSubscriptionRoute  = "/user/subscription"
	WebhookStatsRoute      = "/admin/webhook-stats"
)
