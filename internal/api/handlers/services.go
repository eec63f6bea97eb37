package handlers

import (
	"net/http"

	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/services"
)

// PortsResponse is the expansion of a port specification.
type PortsResponse struct {
	Spec  string   `json:"spec"`
	Count int      `json:"count"`
	Ports []uint16 `json:"ports"`
}

// ListServices handles GET /api/v1/services.
//
//	@Summary		Service table
//	@Description	Lists the well-known port to service name table
//	@Tags			Reference
//	@Produce		json
//	@Success		200	{array}	services.Entry
//	@Router			/services [get]
func ListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, services.All())
}

// ParsePorts handles GET /api/v1/ports?spec=....
//
//	@Summary		Expand a port specification
//	@Tags			Reference
//	@Produce		json
//	@Param			spec	query		string	true	"Port specification, e.g. 22,80,8000-8010"
//	@Success		200		{object}	PortsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/ports [get]
func ParsePorts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("spec")
	spec, err := ports.Parse(raw)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, PortsResponse{
		Spec:  spec.String(),
		Count: spec.Len(),
		Ports: spec,
	})
}
