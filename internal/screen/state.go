package screen

import "github.com/kjstillabower/weather-now/internal/models"

// Phase is the displayed state. Exactly one is displayed at a time.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseError
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// FailureKind classifies why a cycle ended in the Error state.
type FailureKind int

const (
	FailurePermissionDenied FailureKind = iota + 1
	FailureLocationUnavailable
	FailureNetworkOrParse
	FailureUpstream
)

func (k FailureKind) String() string {
	switch k {
	case FailurePermissionDenied:
		return "permission_denied"
	case FailureLocationUnavailable:
		return "location_unavailable"
	case FailureNetworkOrParse:
		return "network"
	case FailureUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

const (
	MessagePermissionDenied    = "Permission to access location was denied"
	MessageLocationUnavailable = "Could not get your location"
	MessageFetchFailed         = "Failed to fetch weather data"
	upstreamMessagePrefix      = "Error: "
)

// Failure is the user-facing outcome of a failed cycle. Err keeps the underlying cause for logs.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

func permissionDenied(err error) *Failure {
	return &Failure{Kind: FailurePermissionDenied, Message: MessagePermissionDenied, Err: err}
}

func locationUnavailable(err error) *Failure {
	return &Failure{Kind: FailureLocationUnavailable, Message: MessageLocationUnavailable, Err: err}
}

func fetchFailed(err error) *Failure {
	return &Failure{Kind: FailureNetworkOrParse, Message: MessageFetchFailed, Err: err}
}

// upstreamFailure passes the upstream message through verbatim.
func upstreamFailure(message string, err error) *Failure {
	return &Failure{Kind: FailureUpstream, Message: upstreamMessagePrefix + message, Err: err}
}

// State is the view state: Loading, Error(failure) or Ready(snapshot), plus the refreshing overlay.
// The zero value is Loading. Use Loading, Failed and Ready to build one.
type State struct {
	phase      Phase
	failure    *Failure
	snapshot   models.WeatherSnapshot
	refreshing bool
}

func Loading() State { return State{phase: PhaseLoading} }

func Failed(f *Failure) State { return State{phase: PhaseError, failure: f} }

func Ready(s models.WeatherSnapshot) State { return State{phase: PhaseReady, snapshot: s} }

func (s State) Phase() Phase { return s.phase }

// Failure returns the failure when the state is Error.
func (s State) Failure() (*Failure, bool) {
	return s.failure, s.phase == PhaseError
}

// Snapshot returns the snapshot when the state is Ready.
func (s State) Snapshot() (models.WeatherSnapshot, bool) {
	if s.phase != PhaseReady {
		return models.WeatherSnapshot{}, false
	}
	return s.snapshot, true
}

func (s State) Refreshing() bool { return s.refreshing }

// WithRefreshing sets the overlay. Loading never carries it.
func (s State) WithRefreshing(v bool) State {
	if s.phase == PhaseLoading {
		v = false
	}
	s.refreshing = v
	return s
}
