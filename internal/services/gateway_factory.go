package services

import (
	"fmt"

	"ticket-checkout/config"
	"ticket-checkout/internal/services/gateway"
	"ticket-checkout/internal/services/gateway/stripe"
	"ticket-checkout/utils"
)

const (
	GatewaySandbox = "sandbox"
	GatewayLive    = "live"
)

// NewGateway builds the gateway for cfg.GatewayMode behind the circuit
// breaker.
func NewGateway(cfg *config.Config) (*gateway.Guarded, error) {
	var gw gateway.Gateway
	switch cfg.GatewayMode {
	case GatewaySandbox:
		gw = gateway.NewSandbox()
	case GatewayLive:
		if cfg.GatewaySecretKey == "" {
			return nil, fmt.Errorf("gateway: live mode needs a secret key")
		}
		gw = stripe.NewClient(stripe.ClientConfig{
			BaseURL:   cfg.GatewayBaseURL,
			SecretKey: cfg.GatewaySecretKey,
			Timeout:   cfg.GatewayTimeout,
		})
	default:
		return nil, fmt.Errorf("gateway: unsupported mode %q", cfg.GatewayMode)
	}

	return gateway.NewGuarded(gw, utils.BreakerSettings{
		MaxRequests:  uint32(cfg.BreakerMaxRequests),
		Interval:     cfg.BreakerInterval,
		Timeout:      cfg.BreakerTimeout,
		FailureRatio: cfg.BreakerFailureRatio,
	}), nil
}
