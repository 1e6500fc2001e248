package risk

import (
	"fmt"
	"time"

	"github.com/richxcame/order-risk/pkg/validation"
)

// Config holds the thresholds and per-signal weights used by the engine.
// A Config is treated as immutable once published; build a new value with
// Apply to change it.
type Config struct {
	// Orders in the trailing 24h that trigger the velocity signal.
	MultipleOrdersThreshold int     `mapstructure:"multiple_orders_threshold" json:"multiple_orders_threshold" validate:"gte=1"`
	MultipleOrdersWeight    float64 `mapstructure:"multiple_orders_weight" json:"multiple_orders_weight" validate:"gte=0"`

	UnusualAddressWeight float64 `mapstructure:"unusual_address_weight" json:"unusual_address_weight" validate:"gte=0"`

	// Percentage above the baseline that counts as a high-value order.
	HighValuePercentage float64 `mapstructure:"high_value_percentage" json:"high_value_percentage" validate:"gte=0"`
	HighValueWeight     float64 `mapstructure:"high_value_weight" json:"high_value_weight" validate:"gte=0"`

	UnusualTimeWeight float64 `mapstructure:"unusual_time_weight" json:"unusual_time_weight" validate:"gte=0"`

	UnusualPaymentWeight float64 `mapstructure:"unusual_payment_weight" json:"unusual_payment_weight" validate:"gte=0"`

	AddressChangeWindowHours float64 `mapstructure:"address_change_window_hours" json:"address_change_window_hours" validate:"gte=0"`
	AddressChangeWeight      float64 `mapstructure:"address_change_weight" json:"address_change_weight" validate:"gte=0"`

	MediumRiskThreshold float64 `mapstructure:"medium_risk_threshold" json:"medium_risk_threshold" validate:"gte=0,lte=100"`
	HighRiskThreshold   float64 `mapstructure:"high_risk_threshold" json:"high_risk_threshold" validate:"gte=0,lte=100,gtefield=MediumRiskThreshold"`

	// TimeZone is the IANA zone hours of day are read in.
	TimeZone string `mapstructure:"time_zone" json:"time_zone" validate:"required,timezone"`

	location *time.Location
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MultipleOrdersThreshold:  3,
		MultipleOrdersWeight:     25,
		UnusualAddressWeight:     15,
		HighValuePercentage:      200,
		HighValueWeight:          20,
		UnusualTimeWeight:        10,
		UnusualPaymentWeight:     15,
		AddressChangeWindowHours: 24,
		AddressChangeWeight:      15,
		MediumRiskThreshold:      30,
		HighRiskThreshold:        60,
		TimeZone:                 "UTC",
		location:                 time.UTC,
	}
}

var validate = validation.New()

// Validate checks weights, thresholds and threshold ordering, and resolves
// the time zone. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Struct(validate, c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("%w: time_zone: %w", ErrInvalidConfig, err)
	}
	c.location = loc
	return nil
}

// Location returns the zone hours of day are computed in.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// ConfigPatch describes a partial change to a Config. Nil fields are left
// untouched.
type ConfigPatch struct {
	MultipleOrdersThreshold  *int     `json:"multiple_orders_threshold,omitempty"`
	MultipleOrdersWeight     *float64 `json:"multiple_orders_weight,omitempty"`
	UnusualAddressWeight     *float64 `json:"unusual_address_weight,omitempty"`
	HighValuePercentage      *float64 `json:"high_value_percentage,omitempty"`
	HighValueWeight          *float64 `json:"high_value_weight,omitempty"`
	UnusualTimeWeight        *float64 `json:"unusual_time_weight,omitempty"`
	UnusualPaymentWeight     *float64 `json:"unusual_payment_weight,omitempty"`
	AddressChangeWindowHours *float64 `json:"address_change_window_hours,omitempty"`
	AddressChangeWeight      *float64 `json:"address_change_weight,omitempty"`
	MediumRiskThreshold      *float64 `json:"medium_risk_threshold,omitempty"`
	HighRiskThreshold        *float64 `json:"high_risk_threshold,omitempty"`
	TimeZone                 *string  `json:"time_zone,omitempty"`
}

// Apply returns a new Config with the patch applied. The receiver is not
// modified and the result is not validated.
func (c Config) Apply(p ConfigPatch) Config {
	out := c
	if p.MultipleOrdersThreshold != nil {
		out.MultipleOrdersThreshold = *p.MultipleOrdersThreshold
	}
	if p.MultipleOrdersWeight != nil {
		out.MultipleOrdersWeight = *p.MultipleOrdersWeight
	}
	if p.UnusualAddressWeight != nil {
		out.UnusualAddressWeight = *p.UnusualAddressWeight
	}
	if p.HighValuePercentage != nil {
		out.HighValuePercentage = *p.HighValuePercentage
	}
	if p.HighValueWeight != nil {
		out.HighValueWeight = *p.HighValueWeight
	}
	if p.UnusualTimeWeight != nil {
		out.UnusualTimeWeight = *p.UnusualTimeWeight
	}
	if p.UnusualPaymentWeight != nil {
		out.UnusualPaymentWeight = *p.UnusualPaymentWeight
	}
	if p.AddressChangeWindowHours != nil {
		out.AddressChangeWindowHours = *p.AddressChangeWindowHours
	}
	if p.AddressChangeWeight != nil {
		out.AddressChangeWeight = *p.AddressChangeWeight
	}
	if p.MediumRiskThreshold != nil {
		out.MediumRiskThreshold = *p.MediumRiskThreshold
	}
	if p.HighRiskThreshold != nil {
		out.HighRiskThreshold = *p.HighRiskThreshold
	}
	if p.TimeZone != nil {
		out.TimeZone = *p.TimeZone
		out.location = nil
	}
	return out
}

// Merge returns p with every field set in next taking its value from next.
func (p ConfigPatch) Merge(next ConfigPatch) ConfigPatch {
	out := p
	if next.MultipleOrdersThreshold != nil {
		out.MultipleOrdersThreshold = next.MultipleOrdersThreshold
	}
	if next.MultipleOrdersWeight != nil {
		out.MultipleOrdersWeight = next.MultipleOrdersWeight
	}
	if next.UnusualAddressWeight != nil {
		out.UnusualAddressWeight = next.UnusualAddressWeight
	}
	if next.HighValuePercentage != nil {
		out.HighValuePercentage = next.HighValuePercentage
	}
	if next.HighValueWeight != nil {
		out.HighValueWeight = next.HighValueWeight
	}
	if next.UnusualTimeWeight != nil {
		out.UnusualTimeWeight = next.UnusualTimeWeight
	}
	if next.UnusualPaymentWeight != nil {
		out.UnusualPaymentWeight = next.UnusualPaymentWeight
	}
	if next.AddressChangeWindowHours != nil {
		out.AddressChangeWindowHours = next.AddressChangeWindowHours
	}
	if next.AddressChangeWeight != nil {
		out.AddressChangeWeight = next.AddressChangeWeight
	}
	if next.MediumRiskThreshold != nil {
		out.MediumRiskThreshold = next.MediumRiskThreshold
	}
	if next.HighRiskThreshold != nil {
		out.HighRiskThreshold = next.HighRiskThreshold
	}
	if next.TimeZone != nil {
		out.TimeZone = next.TimeZone
	}
	return out
}

// ConfigSource supplies the configuration snapshot for one evaluation.
type ConfigSource interface {
	Current() Config
}

type staticConfig struct {
	cfg Config
}

func (s staticConfig) Current() Config {
	return s.cfg
}

// StaticConfig adapts a fixed, already validated Config to ConfigSource.
func StaticConfig(cfg Config) ConfigSource {
	return staticConfig{cfg: cfg}
}
