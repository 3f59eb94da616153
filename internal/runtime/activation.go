package runtime

import (
	"context"
	"fmt"

	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
)

// activationPlan is the mutating action the coordinator decided on for an
// unhandled message.
type activationPlan int

const (
	// planDrop: nothing installed and nothing installable. The message is
	// silently dropped with no notification.
	planDrop activationPlan = iota
	// planRestart: installed and enabled but not active; a restart makes the
	// subscriber register.
	planRestart
	// planEnableAndRestart: installed but disabled.
	planEnableAndRestart
	// planInstall: a compatible package exists in the catalog.
	planInstall
)

// planActivation is a pure function of the subscriber's state so the branch
// policy stays testable without dialog collaborators.
func planActivation(installed, enabled, installableFound bool) activationPlan {
	switch {
	case installed && enabled:
		return planRestart
	case installed:
		return planEnableAndRestart
	case installableFound:
		return planInstall
	default:
		return planDrop
	}
}

// resolveUnhandled drives the activation of a subscriber the resolver does
// not know as active. Every mutating branch asks for consent first; a decline
// ends the message's processing with no retry.
func (s *Service) resolveUnhandled(ctx context.Context, msg Message, addr Address) {
	log := s.Logger.With(loggingpkg.LogFields{"address": addr.String(), "message_id": msg.ID})

	rec, err := s.resolver.GetInstalled(ctx, addr)
	if err != nil {
		log.Error("Failed to look up installed subscriber", err, nil)
		s.notifier.Notify(SeverityError, fmt.Sprintf("Could not look up %s: %v", addr, err))
		return
	}

	var pkg *PackageRecord
	if rec == nil {
		pkg, err = s.resolver.GetCompatibleInstallable(ctx, addr)
		if err != nil {
			log.Error("Failed to query catalog", err, nil)
			s.notifier.Notify(SeverityError, fmt.Sprintf("Could not search for %s: %v", addr, err))
			return
		}
	}

	switch planActivation(rec != nil, rec != nil && s.resolver.IsEnabled(rec), pkg != nil) {
	case planRestart:
		s.offerRestart(ctx, msg, rec, log)
	case planEnableAndRestart:
		s.offerEnableAndRestart(ctx, msg, rec, log)
	case planInstall:
		s.offerInstall(ctx, msg, pkg, log)
	case planDrop:
		s.metrics.RecordActivation(BranchDrop, "dropped")
		log.Debug("No compatible package found, dropping message", nil)
	}
}

func (s *Service) offerRestart(ctx context.Context, msg Message, rec *SubscriberRecord, log loggingpkg.ServiceLogger) {
	prompt := fmt.Sprintf("Restart the host to open this message with %s?", rec.Label())
	if !s.confirm(ctx, prompt, msg.Preview(), "Restart", log) {
		s.metrics.RecordActivation(BranchRestart, "declined")
		return
	}
	s.metrics.RecordActivation(BranchRestart, "restarting")
	s.carryAndRestart(ctx, msg, log)
}

func (s *Service) offerEnableAndRestart(ctx context.Context, msg Message, rec *SubscriberRecord, log loggingpkg.ServiceLogger) {
	prompt := fmt.Sprintf("Enable %s and restart the host to open this message?", rec.Label())
	if !s.confirm(ctx, prompt, msg.Preview(), "Enable and Restart", log) {
		s.metrics.RecordActivation(BranchEnable, "declined")
		return
	}
	if err := s.resolver.SetEnabled(ctx, rec, true); err != nil {
		log.Error("Failed to enable subscriber", err, nil)
		s.notifier.Notify(SeverityError, fmt.Sprintf("Could not enable %s: %v", rec.Label(), err))
		s.metrics.RecordActivation(BranchEnable, "failed")
		return
	}
	s.metrics.RecordActivation(BranchEnable, "restarting")
	s.carryAndRestart(ctx, msg, log)
}

func (s *Service) offerInstall(ctx context.Context, msg Message, pkg *PackageRecord, log loggingpkg.ServiceLogger) {
	prompt := fmt.Sprintf("Install %s to open this message?", pkg.Label())
	if !s.confirm(ctx, prompt, msg.Preview(), "Install", log) {
		s.metrics.RecordActivation(BranchInstall, "declined")
		return
	}

	progress := s.notifier.StartProgress(fmt.Sprintf("Installing %s", pkg.Label()))
	if err := s.resolver.Install(ctx, pkg); err != nil {
		log.Error("Installation failed", err, nil)
		if progress.Dismissed() {
			s.notifier.Notify(SeverityError, fmt.Sprintf("Installing %s failed: %v", pkg.Label(), err))
		} else {
			progress.Fail(err)
		}
		s.metrics.RecordActivation(BranchInstall, "failed")
		// No carry, no restart, no retry; the user re-triggers by resending.
		return
	}
	progress.Done()
	s.metrics.RecordActivation(BranchInstall, "installed")
	log.Info("Subscriber installed, awaiting restart consent", nil)

	// The restart is a second, separate consent surfaced as a persistent
	// notification action, never automatic.
	restartCtx := context.WithoutCancel(ctx)
	s.notifier.Prompt(SeverityInfo,
		fmt.Sprintf("%s is installed. Restart the host to open the message.", pkg.Label()),
		"Restart and Open",
		func() {
			s.metrics.RecordActivation(BranchInstall, "restarting")
			s.carryAndRestart(restartCtx, msg, log)
		})
}

func (s *Service) carryAndRestart(ctx context.Context, msg Message, log loggingpkg.ServiceLogger) {
	if err := s.persistCarry(ctx, msg); err != nil {
		log.Error("Failed to persist restart carry", err, nil)
		s.notifier.Notify(SeverityError, fmt.Sprintf("Could not preserve the message across restart: %v", err))
		return
	}
	if err := s.restarter.RestartHost(ctx); err != nil {
		log.Error("Failed to restart host", err, nil)
	}
}

// confirm wraps the confirmation collaborator, treating errors as a decline.
func (s *Service) confirm(ctx context.Context, prompt, detail, action string, log loggingpkg.ServiceLogger) bool {
	confirmed, err := s.confirmer.Confirm(ctx, prompt, detail, action)
	if err != nil {
		log.Error("Confirmation failed", err, nil)
		return false
	}
	return confirmed
}
