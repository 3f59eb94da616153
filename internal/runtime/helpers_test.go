package runtime

import (
	"context"
	"sync"
	"testing"

	configpkg "github.com/relaykit/deferral/internal/runtime/config"
	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
)

type confirmCall struct {
	message string
	detail  string
	action  string
}

type fakeConfirmer struct {
	mu      sync.Mutex
	approve bool
	err     error
	calls   []confirmCall
}

func (c *fakeConfirmer) Confirm(_ context.Context, message, detail, action string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, confirmCall{message: message, detail: detail, action: action})
	return c.approve, c.err
}

func (c *fakeConfirmer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeResolver struct {
	mu          sync.Mutex
	active      map[Address]*SubscriberRecord
	installed   map[Address]*SubscriberRecord
	enabled     map[Address]bool
	installable map[Address]*PackageRecord

	resolveErr error
	installErr error

	enableCalls  []Address
	installCalls []Address
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		active:      make(map[Address]*SubscriberRecord),
		installed:   make(map[Address]*SubscriberRecord),
		enabled:     make(map[Address]bool),
		installable: make(map[Address]*PackageRecord),
	}
}

func (r *fakeResolver) ResolveActive(_ context.Context, addr Address) (*SubscriberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return r.active[addr], nil
}

func (r *fakeResolver) GetInstalled(_ context.Context, addr Address) (*SubscriberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed[addr], nil
}

func (r *fakeResolver) IsEnabled(rec *SubscriberRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled[rec.Address]
}

func (r *fakeResolver) SetEnabled(_ context.Context, rec *SubscriberRecord, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled[rec.Address] = enabled
	r.enableCalls = append(r.enableCalls, rec.Address)
	return nil
}

func (r *fakeResolver) GetCompatibleInstallable(_ context.Context, addr Address) (*PackageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installable[addr], nil
}

func (r *fakeResolver) Install(_ context.Context, pkg *PackageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installCalls = append(r.installCalls, pkg.Address)
	return r.installErr
}

type fakeActivator struct {
	mu       sync.Mutex
	requests []Address
}

func (a *fakeActivator) RequestActivation(_ context.Context, addr Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, addr)
	return nil
}

func (a *fakeActivator) requested() []Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Address(nil), a.requests...)
}

type fakeRestarter struct {
	mu    sync.Mutex
	calls int
}

func (r *fakeRestarter) RestartHost(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *fakeRestarter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// memState is an in-memory scoped key/value store.
type memState struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newMemState() *memState {
	return &memState{data: make(map[string]map[string][]byte)}
}

func (s *memState) Put(_ context.Context, key string, blob []byte, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[scope] == nil {
		s.data[scope] = make(map[string][]byte)
	}
	s.data[scope][key] = append([]byte(nil), blob...)
	return nil
}

func (s *memState) Get(_ context.Context, key, scope string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.data[scope][key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (s *memState) Remove(_ context.Context, key, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[scope], key)
	return nil
}

type fakeProgress struct {
	mu        sync.Mutex
	updates   []string
	failedErr error
	done      bool
	dismissed bool
}

func (p *fakeProgress) Update(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, message)
}

func (p *fakeProgress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failedErr = err
}

func (p *fakeProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

func (p *fakeProgress) Dismissed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dismissed
}

type promptCall struct {
	severity Severity
	message  string
	action   string
	onAction func()
}

type notice struct {
	severity Severity
	message  string
}

type fakeNotifier struct {
	mu       sync.Mutex
	notices  []notice
	prompts  []promptCall
	progress *fakeProgress
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{progress: &fakeProgress{}}
}

func (n *fakeNotifier) StartProgress(string) ProgressHandle {
	return n.progress
}

func (n *fakeNotifier) Notify(severity Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{severity: severity, message: message})
}

func (n *fakeNotifier) Prompt(severity Severity, message, actionLabel string, onAction func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts = append(n.prompts, promptCall{
		severity: severity,
		message:  message,
		action:   actionLabel,
		onAction: onAction,
	})
}

func (n *fakeNotifier) noticeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func (n *fakeNotifier) lastPrompt() (promptCall, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.prompts) == 0 {
		return promptCall{}, false
	}
	return n.prompts[len(n.prompts)-1], true
}

type recordingHandler struct {
	mu       sync.Mutex
	accept   bool
	err      error
	received []Message
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{accept: true}
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg Message) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
	return h.accept, h.err
}

func (h *recordingHandler) messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.received...)
}

// testFixture bundles a Service with its fake collaborators.
type testFixture struct {
	svc       *Service
	clock     *fakeClock
	confirmer *fakeConfirmer
	resolver  *fakeResolver
	activator *fakeActivator
	restarter *fakeRestarter
	state     *memState
	notifier  *fakeNotifier
}

func newTestService(t *testing.T, conf *configpkg.Config) *testFixture {
	t.Helper()
	return newTestServiceWith(t, conf, nil)
}

func newTestServiceWith(t *testing.T, conf *configpkg.Config, mutate func(*ServiceDependencies)) *testFixture {
	t.Helper()

	fx := &testFixture{
		clock:     newFakeClock(),
		confirmer: &fakeConfirmer{approve: true},
		resolver:  newFakeResolver(),
		activator: &fakeActivator{},
		restarter: &fakeRestarter{},
		state:     newMemState(),
		notifier:  newFakeNotifier(),
	}

	deps := ServiceDependencies{
		Confirmer: fx.confirmer,
		Resolver:  fx.resolver,
		Activator: fx.activator,
		Restarter: fx.restarter,
		State:     fx.state,
		Notifier:  fx.notifier,
		Clock:     fx.clock,
	}
	if mutate != nil {
		mutate(&deps)
	}

	svc, err := NewService(conf, loggingpkg.NewNopServiceLogger(), deps)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	fx.svc = svc
	return fx
}

// knownSubscriber marks an address as resolvable so routing proceeds past
// the existence check.
func (fx *testFixture) knownSubscriber(addr Address, name string) {
	fx.resolver.mu.Lock()
	defer fx.resolver.mu.Unlock()
	fx.resolver.active[addr] = &SubscriberRecord{Address: addr, DisplayName: name}
}
