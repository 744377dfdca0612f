// Package keycheck runs a licensing service response through decoding,
// signature verification and record building.
//
// Only a result == 0 response can reach the verifier, and only bytes that
// passed it can reach the builder.
package keycheck

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/metrics"
	"winsbygroup.com/keyverify/internal/response"
	"winsbygroup.com/keyverify/internal/signature"
)

// VerificationContext is the caller-owned trust configuration. SignMethod
// must be the method requests are made with; a checker trusts no other. A
// zero MidLayout means license.DefaultMidLayout.
type VerificationContext struct {
	PublicKey  *signature.PublicKey
	SignMethod canonical.SignMethod
	MidLayout  license.MidLayout
}

// Checker is immutable after construction and safe for concurrent use.
type Checker struct {
	key        *signature.PublicKey
	serializer canonical.Serializer
	layout     license.MidLayout
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Checker)

func WithLogger(log *zap.Logger) Option {
	return func(c *Checker) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

func NewChecker(vc VerificationContext, opts ...Option) (*Checker, error) {
	if vc.PublicKey == nil || vc.PublicKey.Size() == 0 {
		return nil, errors.New("keycheck: public key is required")
	}
	ser, err := canonical.For(vc.SignMethod)
	if err != nil {
		return nil, fmt.Errorf("keycheck: %w", err)
	}

	layout := vc.MidLayout
	if layout == (license.MidLayout{}) {
		layout = license.DefaultMidLayout
	}

	c := &Checker{
		key:        vc.PublicKey,
		serializer: ser,
		layout:     layout,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignMethod is the serialization mode requests must be made with.
func (c *Checker) SignMethod() canonical.SignMethod {
	return c.serializer.Method()
}

type checkConfig struct {
	metadata bool
}

// CheckOption adjusts a single check.
type CheckOption func(*checkConfig)

// WithMetadata attaches the response's metadata object to the returned key.
func WithMetadata() CheckOption {
	return func(c *checkConfig) { c.metadata = true }
}

// Check verifies body and builds its license record. Every failure is a
// *licerr.Error.
func (c *Checker) Check(body []byte, opts ...CheckOption) (*license.LicenseKey, error) {
	key, err := c.check(body, opts...)
	c.observe(key, err)
	return key, err
}

func (c *Checker) check(body []byte, opts ...CheckOption) (*license.LicenseKey, error) {
	var cfg checkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, err := response.Decode(body)
	if err != nil {
		return nil, err
	}

	message, payload, err := c.serializer.Canonical(raw)
	if err != nil {
		return nil, err
	}

	verified, err := signature.Seal(message, payload, raw.Signature, c.key)
	if err != nil {
		return nil, err
	}

	buildOpts := []license.Option{license.WithMidLayout(c.layout)}
	if cfg.metadata {
		buildOpts = append(buildOpts, license.WithMetadata(raw.Metadata))
	}
	return license.Build(verified, buildOpts...)
}

func (c *Checker) observe(key *license.LicenseKey, err error) {
	if err != nil {
		kind := licerr.KindOf(err)
		c.metrics.ObserveCheck(string(kind))
		c.log.Debug("license check failed",
			zap.String("kind", string(kind)),
			zap.String("message", licerr.Message(err)),
			zap.NamedError("cause", errors.Unwrap(err)),
		)
		return
	}
	c.metrics.ObserveCheck(metrics.OutcomeOK)
	c.log.Debug("license check passed",
		zap.Int64("product_id", key.ProductID),
		logging.Key(key.Key),
		zap.Int("activations", len(key.Machines())),
	)
}

// Outcome is the two-state result of a call: exactly one of Key and Message
// is set.
type Outcome struct {
	Key     *license.LicenseKey
	Message string
	Kind    licerr.Kind
}

// OK reports whether the outcome carries a license.
func (o Outcome) OK() bool {
	return o.Key != nil
}

// Result folds a transport result into an Outcome. transportErr, when set,
// means the server could not be reached and body is ignored.
func (c *Checker) Result(body []byte, transportErr error, opts ...CheckOption) Outcome {
	if transportErr != nil {
		err := asTransport(transportErr)
		c.observe(nil, err)
		return Outcome{Message: licerr.Message(err), Kind: licerr.KindTransport}
	}

	key, err := c.Check(body, opts...)
	if err != nil {
		return Outcome{Message: licerr.Message(err), Kind: licerr.KindOf(err)}
	}
	return Outcome{Key: key}
}

func asTransport(err error) error {
	if licerr.KindOf(err) == licerr.KindTransport {
		return err
	}
	return licerr.NewTransport(TransportMessage(err), err)
}

// TransportMessage renders an unreachable-server error for a user.
func TransportMessage(err error) string {
	return licerr.MsgTransport + " Error message: " + err.Error()
}

// Authorize checks body and evaluates the binding rules for deviceID.
func (c *Checker) Authorize(body []byte, deviceID string, mode binding.Mode, opts ...CheckOption) (*license.LicenseKey, binding.Decision, error) {
	key, err := c.Check(body, opts...)
	if err != nil {
		return nil, binding.Decision{}, err
	}
	return key, binding.Evaluate(key, deviceID, mode), nil
}
