package compose

import (
	"fmt"
	"strconv"

	"github.com/artpar/giac/internal/core/giac"
	"github.com/docker/go-connections/nat"
	"github.com/spf13/cast"
)

// =============================================================================
// Ports
// =============================================================================

func (o *Orchestrator) toPorts(cc *giac.Context, name string, sc *giac.ServiceConfig, svc *ServiceDoc) error {
	for i, p := range sc.Ports {
		field := fmt.Sprintf("ports[%d]", i)
		switch port := p.(type) {
		case giac.ExposePort:
			target := giac.NumericText(cc, port.Target, sc, o)
			if err := validateTarget(target, ""); err != nil {
				return giac.NewConfigError(name, field, err.Error(), ErrServiceInvalidPort)
			}
			svc.Expose = append(svc.Expose, target)
		case giac.PublishPort:
			published := port.Published.Resolve(cc, sc, o)
			target := giac.NumericText(cc, port.Target, sc, o)
			switch {
			case port.Protocol != "":
				if err := validateTarget(target, port.Protocol); err != nil {
					return giac.NewConfigError(name, field, err.Error(), ErrServiceInvalidPort)
				}
				svc.Ports = append(svc.Ports, published+":"+target+"/"+port.Protocol)
			case port.Mode != "":
				return giac.NewConfigError(name, field,
					fmt.Sprintf("published port with mode %q requires a protocol", port.Mode),
					giac.ErrUnsupportedConfiguration)
			default:
				if err := validateTarget(target, ""); err != nil {
					return giac.NewConfigError(name, field, err.Error(), ErrServiceInvalidPort)
				}
				svc.Ports = append(svc.Ports, published+":"+target)
			}
		default:
			return giac.NewConfigError(name, field, fmt.Sprintf("port variant %T", p), giac.ErrUnsupportedConfiguration)
		}
	}
	return nil
}

// validateTarget checks a container port the way the engine parses it.
func validateTarget(target, protocol string) error {
	if protocol == "" {
		protocol = "tcp"
	}
	port, err := nat.NewPort(protocol, target)
	if err != nil {
		return err
	}
	if port.Int() <= 0 {
		return fmt.Errorf("target port must be between 1 and 65535, got %s", target)
	}
	return nil
}

// =============================================================================
// Environment
// =============================================================================

func (o *Orchestrator) toEnvironment(cc *giac.Context, sc *giac.ServiceConfig) map[string]any {
	if len(sc.Environment) == 0 {
		return nil
	}
	env := make(map[string]any, len(sc.Environment))
	for k, v := range sc.Environment {
		switch value := v.Resolve(cc, sc, o).(type) {
		case string, int, int32, int64, uint, uint32, uint64, float32, float64:
			env[k] = value
		default:
			env[k] = stringify(value)
		}
	}
	return env
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case fmt.Stringer:
		return value.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// =============================================================================
// Volumes
// =============================================================================

func (o *Orchestrator) toVolumes(cc *giac.Context, name string, sc *giac.ServiceConfig, er giac.ErrorReporter) []string {
	var volumes []string
	if sc.EngineListener {
		volumes = append(volumes, giac.DockerSocketPath+":"+giac.DockerSocketPath)
	}
	for i, v := range sc.Volumes {
		suffix := ""
		if v == nil || v.MutableContent() == nil {
			suffix = ":ro"
		}
		switch vol := v.(type) {
		case giac.LocalFsPathVolume:
			if vol.ReadOnly {
				suffix = ":ro"
			}
			volumes = append(volumes, vol.LocalFsPath.Resolve(cc, o)+":"+vol.ContainerFsPath.Resolve(cc, sc, o)+suffix)
		case giac.EngineStoreVolume:
			volumes = append(volumes, vol.LocalVolName.Resolve(cc, o)+":"+vol.ContainerFsPath.Resolve(cc, sc, o)+suffix)
		default:
			er.Report(name, giac.NewConfigError(name, fmt.Sprintf("volumes[%d]", i),
				fmt.Sprintf("unknown volume type %T in service %s", v, name), giac.ErrUnknownVolume))
		}
	}
	return volumes
}
