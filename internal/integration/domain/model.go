// Package domain contains the integration record and OAuth pending
// session types.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Platform identifies an external data provider.
type Platform string

const (
	PlatformShopify         Platform = "SHOPIFY"
	PlatformStripe          Platform = "STRIPE"
	PlatformWooCommerce     Platform = "WOOCOMMERCE"
	PlatformGoogleAnalytics Platform = "GOOGLE_ANALYTICS"
	PlatformFacebookAds     Platform = "FACEBOOK_ADS"
)

// ParsePlatform maps a URL path segment to a Platform.
func ParsePlatform(raw string) (Platform, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SHOPIFY":
		return PlatformShopify, true
	case "STRIPE":
		return PlatformStripe, true
	case "WOOCOMMERCE":
		return PlatformWooCommerce, true
	case "GOOGLE_ANALYTICS", "GOOGLE-ANALYTICS":
		return PlatformGoogleAnalytics, true
	case "FACEBOOK_ADS", "FACEBOOK-ADS", "FACEBOOK":
		return PlatformFacebookAds, true
	default:
		return "", false
	}
}

func (p Platform) String() string { return string(p) }

// Status is the connection state of an integration slot.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnected    Status = "CONNECTED"
	StatusError        Status = "ERROR"
)

// Integration is one (organization, platform) connection slot. The
// encrypted token never leaves the service boundary.
type Integration struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID                snowflake.ID      `gorm:"column:organization_id;not null;uniqueIndex:idx_org_platform" json:"organization_id"`
	Platform             Platform          `gorm:"type:text;not null;uniqueIndex:idx_org_platform" json:"platform"`
	Status               Status            `gorm:"type:text;not null;default:'DISCONNECTED'" json:"status"`
	ShopDomain           string            `gorm:"column:shop_domain;type:text;not null;default:''" json:"shop_domain"`
	EncryptedAccessToken string            `gorm:"column:encrypted_access_token;type:text;not null;default:''" json:"-"`
	Scopes               string            `gorm:"type:text;not null;default:''" json:"scopes"`
	PendingState         *string           `gorm:"column:pending_state;index" json:"-"`
	PendingNonce         *string           `gorm:"column:pending_nonce" json:"-"`
	PendingShop          *string           `gorm:"column:pending_shop" json:"-"`
	PendingUserID        *snowflake.ID     `gorm:"column:pending_user_id" json:"-"`
	PendingIssuedAt      *time.Time        `gorm:"column:pending_issued_at" json:"-"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	LastError            string            `gorm:"column:last_error;type:text;not null;default:''" json:"last_error,omitempty"`
	LastSyncAt           *time.Time        `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	ConnectedAt          *time.Time        `gorm:"column:connected_at" json:"connected_at,omitempty"`
	Version              int64             `gorm:"not null;default:1" json:"-"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Integration) TableName() string { return "integrations" }

// PendingSession is the consumed OAuth handshake state.
type PendingSession struct {
	IntegrationID snowflake.ID
	OrgID         snowflake.ID
	Platform      Platform
	Shop          string
	UserID        snowflake.ID
	Nonce         string
	IssuedAt      time.Time
}
