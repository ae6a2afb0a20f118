package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	SequencePolicyScan  = "scan"
	SequencePolicyNaive = "naive"

	DefaultSiteID = "SITE-DEFAULT"
)

// LedgerPolicy holds the runtime-tunable ledger behavior.
type LedgerPolicy struct {
	SequencePolicy       string        `mapstructure:"sequencePolicy"`
	LockTimeout          time.Duration `mapstructure:"lockTimeout"`
	DefaultSiteID        string        `mapstructure:"defaultSiteId"`
	MarkBagUsed          bool          `mapstructure:"markBagUsed"`
	ValidateBag          bool          `mapstructure:"validateBag"`
	RejectDuplicateUsage bool          `mapstructure:"rejectDuplicateUsage"`
	MaxBatchSize         int           `mapstructure:"maxBatchSize"`
	TimeZone             string        `mapstructure:"timeZone"`

	loc *time.Location
}

func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{
		SequencePolicy:       SequencePolicyScan,
		LockTimeout:          30 * time.Second,
		DefaultSiteID:        DefaultSiteID,
		MarkBagUsed:          true,
		ValidateBag:          true,
		RejectDuplicateUsage: false,
		MaxBatchSize:         5000,
		TimeZone:             "UTC",
		loc:                  time.UTC,
	}
}

// Location returns the zone resolved when the policy was loaded, falling
// back to UTC.
func (p LedgerPolicy) Location() *time.Location {
	if p.loc != nil && p.loc.String() == strings.TrimSpace(p.TimeZone) {
		return p.loc
	}
	return loadLocation(p.TimeZone)
}

func (p LedgerPolicy) withLocation() LedgerPolicy {
	p.loc = loadLocation(p.TimeZone)
	return p
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type LedgerPolicyHolder struct {
	current atomic.Value // holds LedgerPolicy
}

// NewLedgerPolicyHolder reads ledger.yml from the standard config paths and
// watches it for changes. A missing file yields the defaults.
func NewLedgerPolicyHolder(log *zap.Logger) (*LedgerPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cemtrack/config")
	v.AddConfigPath("/etc/cemtrack")
	v.AddConfigPath(".")

	return newLedgerPolicyHolder(v, log)
}

// LoadLedgerPolicyFile reads the policy from an explicit file path.
func LoadLedgerPolicyFile(path string, log *zap.Logger) (*LedgerPolicyHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newLedgerPolicyHolder(v, log)
}

// NewStaticLedgerPolicy returns a holder that never reloads.
func NewStaticLedgerPolicy(policy LedgerPolicy) *LedgerPolicyHolder {
	holder := &LedgerPolicyHolder{}
	holder.current.Store(policy.withLocation())
	return holder
}

func newLedgerPolicyHolder(v *viper.Viper, log *zap.Logger) (*LedgerPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ledger.policy")

	v.SetEnvPrefix("CEMTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLedgerPolicy()
	v.SetDefault("ledger.sequencePolicy", defaults.SequencePolicy)
	v.SetDefault("ledger.lockTimeout", defaults.LockTimeout)
	v.SetDefault("ledger.defaultSiteId", defaults.DefaultSiteID)
	v.SetDefault("ledger.markBagUsed", defaults.MarkBagUsed)
	v.SetDefault("ledger.validateBag", defaults.ValidateBag)
	v.SetDefault("ledger.rejectDuplicateUsage", defaults.RejectDuplicateUsage)
	v.SetDefault("ledger.maxBatchSize", defaults.MaxBatchSize)
	v.SetDefault("ledger.timeZone", defaults.TimeZone)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read ledger policy: %w", err)
		}
		fileLoaded = false
	}

	policy, err := decodeLedgerPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticLedgerPolicy(policy)
	log.Info("ledger policy loaded",
		zap.String("sequence_policy", policy.SequencePolicy),
		zap.Duration("lock_timeout", policy.LockTimeout),
		zap.Bool("mark_bag_used", policy.MarkBagUsed),
		zap.Bool("from_file", fileLoaded),
	)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeLedgerPolicy(v)
			if err != nil {
				log.Warn("invalid ledger policy ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("ledger policy reloaded",
				zap.String("file", e.Name),
				zap.String("sequence_policy", updated.SequencePolicy),
			)
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *LedgerPolicyHolder) Get() LedgerPolicy {
	return h.current.Load().(LedgerPolicy)
}

// Set replaces the current policy without validation.
func (h *LedgerPolicyHolder) Set(policy LedgerPolicy) {
	h.current.Store(policy.withLocation())
}

func decodeLedgerPolicy(v *viper.Viper) (LedgerPolicy, error) {
	var policy LedgerPolicy
	if err := v.UnmarshalKey("ledger", &policy); err != nil {
		return LedgerPolicy{}, fmt.Errorf("decode ledger policy: %w", err)
	}
	policy.SequencePolicy = strings.ToLower(strings.TrimSpace(policy.SequencePolicy))
	policy.DefaultSiteID = strings.TrimSpace(policy.DefaultSiteID)
	policy.TimeZone = strings.TrimSpace(policy.TimeZone)
	if err := validateLedgerPolicy(policy); err != nil {
		return LedgerPolicy{}, err
	}
	return policy.withLocation(), nil
}

func validateLedgerPolicy(p LedgerPolicy) error {
	switch p.SequencePolicy {
	case SequencePolicyScan, SequencePolicyNaive:
	default:
		return fmt.Errorf("ledger.sequencePolicy must be %q or %q, got %q", SequencePolicyScan, SequencePolicyNaive, p.SequencePolicy)
	}
	if p.LockTimeout <= 0 {
		return errors.New("ledger.lockTimeout must be positive")
	}
	if p.DefaultSiteID == "" {
		return errors.New("ledger.defaultSiteId cannot be empty")
	}
	if p.MaxBatchSize <= 0 {
		return errors.New("ledger.maxBatchSize must be positive")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(p.TimeZone)); err != nil {
		return fmt.Errorf("ledger.timeZone: %w", err)
	}
	return nil
}
