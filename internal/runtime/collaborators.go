package runtime

import "context"

// Handler is the capability a registered subscriber exposes to receive
// messages. The boolean outcome reports whether the handler accepted the
// message.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) (bool, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) (bool, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) (bool, error) {
	return f(ctx, msg)
}

// Confirmer asks the user to approve an action before the service mutates
// anything on their behalf. Implementations must be safe for concurrent use;
// routing calls for unrelated addresses may prompt at the same time.
type Confirmer interface {
	Confirm(ctx context.Context, message, detail, primaryAction string) (bool, error)
}

// ConfirmerFunc adapts a plain function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, message, detail, primaryAction string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, message, detail, primaryAction string) (bool, error) {
	return f(ctx, message, detail, primaryAction)
}

// SubscriberRecord describes an installed subscriber known to the resolver.
type SubscriberRecord struct {
	Address     Address
	DisplayName string
}

// Label returns the human-readable name for prompts, falling back to the
// address when the record carries none.
func (r *SubscriberRecord) Label() string {
	if r != nil && r.DisplayName != "" {
		return r.DisplayName
	}
	if r != nil {
		return r.Address.String()
	}
	return ""
}

// PackageRecord describes an installable package compatible with an address.
type PackageRecord struct {
	Address     Address
	DisplayName string
	Version     string
}

// Label returns the human-readable name for prompts.
func (p *PackageRecord) Label() string {
	if p != nil && p.DisplayName != "" {
		return p.DisplayName
	}
	if p != nil {
		return p.Address.String()
	}
	return ""
}

// LifecycleResolver answers questions about subscribers and drives the
// environment-specific mutations the activation coordinator decides on.
// All methods may be called from concurrent routing calls.
type LifecycleResolver interface {
	// ResolveActive reports whether the address names a known, resolvable
	// subscriber. A nil record means the subscriber is unknown to the host.
	ResolveActive(ctx context.Context, addr Address) (*SubscriberRecord, error)

	// GetInstalled returns the installed subscriber for the address, or nil.
	GetInstalled(ctx context.Context, addr Address) (*SubscriberRecord, error)

	// IsEnabled reports whether an installed subscriber is enabled.
	IsEnabled(rec *SubscriberRecord) bool

	// SetEnabled enables or disables an installed subscriber.
	SetEnabled(ctx context.Context, rec *SubscriberRecord, enabled bool) error

	// GetCompatibleInstallable resolves a package that could be installed to
	// serve the address, or nil when the catalog has none.
	GetCompatibleInstallable(ctx context.Context, addr Address) (*PackageRecord, error)

	// Install installs the package.
	Install(ctx context.Context, pkg *PackageRecord) error
}

// ActivationTrigger signals that a subscriber should become active and
// eventually call Register. Fire-and-forget from the router's perspective.
type ActivationTrigger interface {
	RequestActivation(ctx context.Context, addr Address) error
}

// HostRestarter restarts the host process. The call may never return.
type HostRestarter interface {
	RestartHost(ctx context.Context) error
}

// StateStore is the scoped key/value persistence collaborator used for the
// restart carry. Get returns a nil blob when the key is absent.
type StateStore interface {
	Put(ctx context.Context, key string, blob []byte, scope string) error
	Get(ctx context.Context, key, scope string) ([]byte, error)
	Remove(ctx context.Context, key, scope string) error
}

// Severity classifies a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// ProgressHandle is a live, mutable progress surface for a long-running
// operation such as an installation.
type ProgressHandle interface {
	// Update replaces the progress message.
	Update(message string)
	// Fail surfaces the error on the progress surface.
	Fail(err error)
	// Done completes and removes the progress surface.
	Done()
	// Dismissed reports whether the user already closed the surface.
	Dismissed() bool
}

// Notifier shows notifications to the user. StartProgress opens an
// indeterminate progress surface; Prompt shows a persistent notification with
// a single action that invokes onAction when clicked.
type Notifier interface {
	StartProgress(message string) ProgressHandle
	Notify(severity Severity, message string)
	Prompt(severity Severity, message, actionLabel string, onAction func())
}
