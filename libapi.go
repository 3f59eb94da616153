package deferral

import (
	runtimepkg "github.com/relaykit/deferral/internal/runtime"
	configpkg "github.com/relaykit/deferral/internal/runtime/config"
	errspkg "github.com/relaykit/deferral/internal/runtime/errors"
	idspkg "github.com/relaykit/deferral/internal/runtime/ids"
	jsoncodec "github.com/relaykit/deferral/internal/runtime/jsoncodec"
	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
	transportpkg "github.com/relaykit/deferral/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Address       = runtimepkg.Address
	Message       = runtimepkg.Message
	Handler       = runtimepkg.Handler
	HandlerFunc   = runtimepkg.HandlerFunc
	Confirmer     = runtimepkg.Confirmer
	ConfirmerFunc = runtimepkg.ConfirmerFunc

	SubscriberRecord  = runtimepkg.SubscriberRecord
	PackageRecord     = runtimepkg.PackageRecord
	LifecycleResolver = runtimepkg.LifecycleResolver
	ActivationTrigger = runtimepkg.ActivationTrigger
	HostRestarter     = runtimepkg.HostRestarter
	StateStore        = runtimepkg.StateStore

	Notifier       = runtimepkg.Notifier
	ProgressHandle = runtimepkg.ProgressHandle
	Severity       = runtimepkg.Severity

	Clock            = runtimepkg.Clock
	TransportFactory = runtimepkg.TransportFactory

	RouterMetrics          = runtimepkg.RouterMetrics
	RouterMetricsSnapshot  = runtimepkg.RouterMetricsSnapshot
	PendingSnapshot        = runtimepkg.PendingSnapshot
	PendingAddressSnapshot = runtimepkg.PendingAddressSnapshot

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types; import individual transports via
	// _ "github.com/relaykit/deferral/transport/kafka" and friends.
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	FromEnv        = configpkg.FromEnv
	ValidateConfig = configpkg.ValidateConfig

	ParseAddress = runtimepkg.ParseAddress
	NewMessage   = runtimepkg.NewMessage

	NewRouterMetrics = runtimepkg.NewRouterMetrics

	// Transport registry
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrServiceRequired   = errspkg.ErrServiceRequired
	ErrAddressRequired   = errspkg.ErrAddressRequired
	ErrHandlerRequired   = errspkg.ErrHandlerRequired
	ErrInvalidAddress    = errspkg.ErrInvalidAddress
	ErrConfirmerRequired = errspkg.ErrConfirmerRequired
	ErrResolverRequired  = errspkg.ErrResolverRequired
	ErrActivatorRequired = errspkg.ErrActivatorRequired
	ErrRestarterRequired = errspkg.ErrRestarterRequired
	ErrStateRequired     = errspkg.ErrStateRequired
	ErrAlreadyStarted    = errspkg.ErrAlreadyStarted
	ErrNotStarted        = errspkg.ErrNotStarted

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	NewMessageID = idspkg.NewMessageID
)

// Severity levels for notifications and prompts.
const (
	SeverityInfo    = runtimepkg.SeverityInfo
	SeverityWarning = runtimepkg.SeverityWarning
	SeverityError   = runtimepkg.SeverityError
)

// Defaults for the retention and carry knobs.
const (
	DefaultRetentionWindow = configpkg.DefaultRetentionWindow
	DefaultSweepInterval   = configpkg.DefaultSweepInterval
	DefaultCarryScope      = configpkg.DefaultCarryScope
)
