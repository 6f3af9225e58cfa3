package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"go.uber.org/zap"
)

const (
	webhookBodyLimit = 1 << 20
	// webhookDedupTTL covers Shopify's redelivery window; a delivery ID
	// seen twice inside it is a replay.
	webhookDedupTTL = 48 * time.Hour
)

// ShopifyOrdersCreateWebhook receives order notifications. The HMAC is
// verified against the raw body before anything else happens, and
// redeliveries are dropped by webhook ID.
func (s *Server) ShopifyOrdersCreateWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		s.obsMetrics.IncWebhook("shopify", "read_error")
		c.Status(http.StatusBadRequest)
		return
	}

	secret := s.cfg.Shopify.WebhookSecret
	if secret == "" {
		secret = s.cfg.Shopify.APISecret
	}
	signature := c.GetHeader("X-Shopify-Hmac-Sha256")
	if !secrets.VerifyHMACBase64(body, signature, secret) {
		s.obsMetrics.IncWebhook("shopify", "invalid_signature")
		c.Status(http.StatusUnauthorized)
		return
	}

	webhookID := strings.TrimSpace(c.GetHeader("X-Shopify-Webhook-Id"))
	if webhookID != "" {
		seen, err := s.dedup.Seen(c.Request.Context(), "shopify:"+webhookID, webhookDedupTTL)
		if err != nil {
			// Dedup store trouble is not the sender's problem; process
			// the delivery and let the sync reconcile duplicates.
			s.log.Warn("webhook dedup unavailable", zap.Error(err))
		} else if seen {
			s.obsMetrics.IncWebhook("shopify", "replay")
			c.Status(http.StatusOK)
			return
		}
	}

	shop := strings.TrimSpace(c.GetHeader("X-Shopify-Shop-Domain"))
	s.obsMetrics.IncWebhook("shopify", "accepted")
	s.log.Info("shopify webhook accepted",
		zap.String("topic", c.GetHeader("X-Shopify-Topic")),
		zap.String("shop", shop),
		zap.Int("bytes", len(body)),
	)

	// Orders are materialized on the sync schedule; the webhook only
	// acknowledges receipt so Shopify does not disable the subscription.
	c.Status(http.StatusOK)
}
