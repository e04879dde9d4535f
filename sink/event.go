package sink

import (
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"pybake/internal/orchestrator"
)

// Event summarises one orchestrator run for downstream consumers.
type Event struct {
	RequestID     string
	Mode          string
	Status        string // ok | partial | failed
	Artifacts     []string
	FailedTargets []string
	Error         string
	Duration      time.Duration
	At            time.Time
}

func FromRun(res *orchestrator.Result, err error) *Event {
	ev := &Event{
		Status: orchestrator.Outcome(res, err),
		At:     time.Now().UTC(),
	}
	if res != nil {
		ev.RequestID = res.RequestID
		ev.Mode = string(res.Mode)
		ev.Duration = res.Duration
		for _, a := range res.Artifacts {
			ev.Artifacts = append(ev.Artifacts, a.Name)
		}
	}
	if err != nil {
		ev.Error = err.Error()
		for _, te := range orchestrator.ToolErrors(err) {
			if te.Target != "" {
				ev.FailedTargets = append(ev.FailedTargets, te.Target)
			}
		}
	}
	return ev
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Struct renders the event as a protobuf Struct.
func (e *Event) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request_id":     e.RequestID,
		"mode":           e.Mode,
		"status":         e.Status,
		"artifacts":      toAny(e.Artifacts),
		"failed_targets": toAny(e.FailedTargets),
		"error":          e.Error,
		"duration_ms":    float64(e.Duration.Milliseconds()),
		"at":             e.At.Format(time.RFC3339Nano),
	})
}

// Encode returns the event as compact JSON.
func Encode(e *Event) ([]byte, error) {
	st, err := e.Struct()
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
}
