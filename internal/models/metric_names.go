package models

// Raw metrics read from exports.
const (
	MetricAmountSpent        = "amount_spent"
	MetricImpressions        = "impressions"
	MetricReach              = "reach"
	MetricLinkClicks         = "link_clicks"
	MetricLandingPageViews   = "landing_page_views"
	MetricContentViews       = "content_views"
	MetricAddsToCart         = "adds_to_cart"
	MetricCheckoutsInitiated = "checkouts_initiated"
	MetricPurchases          = "purchases"
	MetricPurchaseValue      = "purchase_value"
	MetricMessagingStarted   = "messaging_conversations_started"
)

// Metrics computed from raw values.
const (
	MetricCostPerResult = "cost_per_result"
	MetricCTR           = "ctr"
	MetricCPC           = "cpc"
	MetricCPM           = "cpm"
	MetricFrequency     = "frequency"
	MetricROAS          = "roas"
	MetricAOV           = "aov"
)
