package toolchain

// Phase is the lifecycle stage of a tool.
type Phase string

const (
	PhaseNotInstalled Phase = "not_installed"
	PhaseChecking     Phase = "checking"
	PhaseDownloading  Phase = "downloading"
	PhaseInstalled    Phase = "installed"
	PhaseFoundInPath  Phase = "found_in_path"
	PhaseError        Phase = "error"
)

// Status is a snapshot of one tool's state. Fields beyond Kind and Phase are
// populated only where the phase gives them meaning: Progress during
// downloads, Version/Source/Path once a usable binary is known, Message when
// something went wrong.
type Status struct {
	Kind     Kind    `json:"kind"`
	Phase    Phase   `json:"phase"`
	Progress float64 `json:"progress,omitempty"`
	Version  string  `json:"version,omitempty"`
	Source   Source  `json:"source,omitempty"`
	Path     string  `json:"path,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Ready reports whether the tool can be invoked. A binary that was merely
// discovered on the system is visible but not ready until the user selects
// it.
func (s Status) Ready() bool {
	return s.Phase == PhaseInstalled
}
