package giac

// =============================================================================
// Volume Configuration
// =============================================================================

// RecoveryType describes how the content of a mutable volume can be restored.
type RecoveryType string

const (
	Recoverable     RecoveryType = "recoverable"
	Reconstructible RecoveryType = "reconstructible"
	Irrecoverable   RecoveryType = "irrecoverable"
	External        RecoveryType = "external"
)

// Mutable marks a volume whose content changes at runtime. Volumes without it
// are mounted read-only.
type Mutable struct {
	ContentType  string
	RecoveryType RecoveryType
}

// Volume is implemented by EngineStoreVolume and LocalFsPathVolume. The set is
// open; the transformer reports variants it cannot render and skips them.
type Volume interface {
	// MutableContent returns nil for read-only volumes.
	MutableContent() *Mutable
}

// EngineStoreVolume is a named volume managed by the container engine.
type EngineStoreVolume struct {
	LocalVolName    Text
	EngineVolName   Text
	ContainerFsPath Text
	Mutable         *Mutable
}

// LocalFsPathVolume is a bind mount of a host path.
type LocalFsPathVolume struct {
	LocalFsPath     Text
	ContainerFsPath Text
	ReadOnly        bool
	Mutable         *Mutable
}

func (v EngineStoreVolume) MutableContent() *Mutable { return v.Mutable }
func (v LocalFsPathVolume) MutableContent() *Mutable { return v.Mutable }

// DockerSocketPath is bind mounted into engine listeners.
const DockerSocketPath = "/var/run/docker.sock"
