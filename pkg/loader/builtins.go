package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/registry"
	"github.com/lenML/pflow/pkg/shared"
)

// Builtins returns a registry preloaded with the built-in node types:
// set writes a value into the shared context, echo logs a message, delay
// pauses the traversal.
func Builtins() *registry.Registry {
	reg := registry.New()
	reg.Register("set", newSetNode)
	reg.Register("echo", newEchoNode)
	reg.Register("delay", newDelayNode)
	return reg
}

type setConfig struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

func newSetNode(params domain.Params) (pflow.Node, error) {
	var cfg setConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("set: key is required")
	}

	return pflow.NewNode("set", pflow.Steps{
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Set(cfg.Key, cfg.Value)
			return "", nil
		},
	}, pflow.WithParams(params)), nil
}

type echoConfig struct {
	Message string `mapstructure:"message"`
}

func newEchoNode(params domain.Params) (pflow.Node, error) {
	var cfg echoConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}

	return pflow.NewNode("echo", pflow.Steps{
		Exec: func(ctx context.Context, params domain.Params, prep any) (any, error) {
			return cfg.Message, nil
		},
		Post: func(ctx context.Context, sc *shared.Shared, params domain.Params, prep, exec any) (domain.Action, error) {
			sc.Logger().Info("echo", "message", exec)
			return "", nil
		},
	}, pflow.WithParams(params)), nil
}

type delayConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

func newDelayNode(params domain.Params) (pflow.Node, error) {
	var cfg delayConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("delay: duration must not be negative")
	}

	return pflow.NewNode("delay", pflow.Steps{
		Exec: func(ctx context.Context, params domain.Params, prep any) (any, error) {
			timer := time.NewTimer(cfg.Duration)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}, pflow.WithParams(params)), nil
}

func decodeParams(params domain.Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
