package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders committed by the order placement transaction.",
	})

	OrderPlacementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_placement_failures_total",
		Help: "Rejected or rolled back order placements by reason.",
	}, []string{"reason"})

	OTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_otp_requests_total",
		Help: "One-time code requests by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_otp_verifications_total",
		Help: "One-time code verifications by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	RateLimitedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_rate_limited_requests_total",
		Help: "Requests rejected by the edge rate limiter.",
	}, []string{"route"})
)
