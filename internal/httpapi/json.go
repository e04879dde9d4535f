package httpapi

import (
	"pybake/internal/orchestrator"
)

type artifactJSON struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Stage    string `json:"stage"`
	Size     int    `json:"size"`
	Data     []byte `json:"data"` // base64
}

type invocationJSON struct {
	Tool       string   `json:"tool"`
	Target     string   `json:"target,omitempty"`
	ExitCode   int      `json:"exit_code"`
	Stdout     string   `json:"stdout,omitempty"`
	Stderr     string   `json:"stderr,omitempty"`
	Produced   []string `json:"produced,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

type resultJSON struct {
	RequestID   string           `json:"request_id"`
	Mode        string           `json:"mode"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []artifactJSON   `json:"artifacts"`
	Invocations []invocationJSON `json:"invocations"`
}

func newResultJSON(res *orchestrator.Result, err error) resultJSON {
	out := resultJSON{
		RequestID:   res.RequestID,
		Mode:        string(res.Mode),
		Status:      orchestrator.Outcome(res, err),
		Artifacts:   make([]artifactJSON, 0, len(res.Artifacts)),
		Invocations: make([]invocationJSON, 0, len(res.Invocations)),
	}
	if err != nil {
		out.Error = err.Error()
	}
	for _, a := range res.Artifacts {
		out.Artifacts = append(out.Artifacts, artifactJSON{
			Name:     a.Name,
			MIMEType: a.MIMEType,
			Stage:    string(a.Stage),
			Size:     len(a.Data),
			Data:     a.Data,
		})
	}
	for _, inv := range res.Invocations {
		out.Invocations = append(out.Invocations, invocationJSON{
			Tool:       inv.Tool,
			Target:     inv.Target,
			ExitCode:   inv.ExitCode,
			Stdout:     string(inv.Stdout),
			Stderr:     string(inv.Stderr),
			Produced:   inv.Produced,
			DurationMS: inv.Duration.Milliseconds(),
		})
	}
	return out
}
