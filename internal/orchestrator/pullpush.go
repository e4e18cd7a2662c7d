package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Pull implements §4.6's pull(servicesFilter?): pulls every filtered service's image, skipping
// services with no image (build-only services have nothing to pull).
func (o *Orchestrator) Pull(ctx context.Context, servicesFilter []string) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	for _, service := range o.selectedServiceNames(servicesFilter) {
		svc, _ := o.serviceByName(service)
		if svc.Image == "" {
			continue
		}
		if _, err := o.caps.Image.Pull(ctx, svc.Image); err != nil {
			return fmt.Errorf("orchestrator: pull %q for service %q: %w", svc.Image, service, err)
		}
		o.logger.Info("image pulled", zap.String("service", service), zap.String("image", svc.Image))
	}
	return nil
}

// Push implements §4.6's push(servicesFilter?): pushes only build-based images, tagged
// "{project}_{service}:latest" per §4.6's pull/push rule.
func (o *Orchestrator) Push(ctx context.Context, servicesFilter []string) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	for _, service := range o.selectedServiceNames(servicesFilter) {
		svc, _ := o.serviceByName(service)
		if svc.Build == nil {
			continue
		}
		tag := fmt.Sprintf("%s_%s:latest", o.project, service)
		if err := o.caps.Image.Push(ctx, tag); err != nil {
			return fmt.Errorf("orchestrator: push %q for service %q: %w", tag, service, err)
		}
		o.logger.Info("image pushed", zap.String("service", service), zap.String("image", tag))
	}
	return nil
}

func (o *Orchestrator) selectedServiceNames(filter []string) []string {
	if len(filter) == 0 {
		return o.allServiceNames()
	}
	return filter
}
