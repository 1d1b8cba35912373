package meshcapade

import "strings"

// State is the avatar processing state reported by the API.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateReady      State = "READY"
	StateError      State = "ERROR"
)

// ParseState normalizes a wire state. Unknown values are preserved
// verbatim so they can still be shown to the user.
func ParseState(raw string) State {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatePending):
		return StatePending
	case string(StateProcessing):
		return StateProcessing
	case string(StateReady):
		return StateReady
	case string(StateError):
		return StateError
	default:
		return State(raw)
	}
}

// Ready reports whether fitting has completed successfully.
func (s State) Ready() bool { return s == StateReady }

// Avatar is the client-side view of an avatar record.
type Avatar struct {
	ID    string
	State State
	// Measurements holds the numeric mesh measurements, present only
	// once the avatar is ready. Extra carries non-numeric report
	// entries through unchanged.
	Measurements map[string]float64
	Extra        map[string]any
}

// FittingParams describes the fit-to-images request.
type FittingParams struct {
	AvatarName string
	Gender     string
	Height     *float64
	Weight     *float64
}

// Wire envelopes. The API wraps resources JSON:API style under "data".

type createResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type imageUploadResponse struct {
	Data struct {
		ID    string `json:"id"`
		Links struct {
			Upload string `json:"upload"`
		} `json:"links"`
	} `json:"data"`
}

type avatarResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			State    string `json:"state"`
			Metadata struct {
				BodyShape struct {
					MeshMeasurements map[string]any `json:"mesh_measurements"`
				} `json:"bodyShape"`
			} `json:"metadata"`
		} `json:"attributes"`
	} `json:"data"`
}

type fittingRequest struct {
	AvatarName string   `json:"avatarname"`
	Gender     string   `json:"gender"`
	ImageMode  string   `json:"imageMode"`
	Height     *float64 `json:"height,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
}
