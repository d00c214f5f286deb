package app

import (
	"fmt"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// Resource paths.
var (
	PathButton       = resource.Path{Object: 3200, Instance: 0, Resource: 5501}
	PathPattern      = resource.Path{Object: 3201, Instance: 0, Resource: 5853}
	PathBlink        = resource.Path{Object: 3201, Instance: 0, Resource: 5850}
	PathTemperature  = resource.Path{Object: 3303, Instance: 0, Resource: 5700}
	PathUnregister   = resource.Path{Object: 5000, Instance: 0, Resource: 1}
	PathFactoryReset = resource.Path{Object: 5000, Instance: 0, Resource: 2}
)

// registerResources creates the device's resources in registration order.
func (a *App) registerResources() error {
	specs := []struct {
		spec   resource.Spec
		handle **resource.Resource
	}{
		{
			spec: resource.Spec{
				Path:       PathButton,
				Name:       "button_count",
				Type:       resource.Integer,
				Operations: resource.ReadOnly,
				Observable: true,
				Initial:    int64(0),
				OnStatus:   a.onDeliveryStatus,
			},
			handle: &a.button,
		},
		{
			spec: resource.Spec{
				Path:       PathPattern,
				Name:       "blink_pattern",
				Type:       resource.String,
				Operations: resource.ReadWrite,
				Initial:    a.cfg.Application.DefaultPattern,
				OnWrite:    a.onPatternWrite,
			},
			handle: &a.pattern,
		},
		{
			spec: resource.Spec{
				Path:       PathBlink,
				Name:       "blink",
				Type:       resource.String,
				Operations: resource.ExecuteOnly,
				Delayed:    true,
				OnExecute:  a.onBlinkExecute,
				OnStatus:   a.onDeliveryStatus,
			},
			handle: &a.blink,
		},
		{
			spec: resource.Spec{
				Path:       PathTemperature,
				Name:       "temperature",
				Type:       resource.Integer,
				Operations: resource.ReadOnly,
				Observable: true,
				OnStatus:   a.onDeliveryStatus,
			},
			handle: &a.temperature,
		},
		{
			spec: resource.Spec{
				Path:       PathUnregister,
				Name:       "unregister",
				Type:       resource.String,
				Operations: resource.ExecuteOnly,
				OnExecute:  a.onUnregister,
			},
			handle: &a.unregister,
		},
		{
			spec: resource.Spec{
				Path:       PathFactoryReset,
				Name:       "factory_reset",
				Type:       resource.String,
				Operations: resource.ExecuteOnly,
				OnExecute:  a.onFactoryReset,
			},
			handle: &a.factoryReset,
		},
	}

	for _, s := range specs {
		res, err := a.registry.Create(s.spec)
		if err != nil {
			return fmt.Errorf("creating %s resource: %w", s.spec.Name, err)
		}
		*s.handle = res
	}
	return nil
}
