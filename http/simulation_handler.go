package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"loan-risk/domain"
	"loan-risk/report"
	"loan-risk/service"
)

type SimulationHandler struct {
	service *service.SimulationService
}

func NewSimulationHandler(service *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{service: service}
}

// summaryResponse keeps the flat summary shape of GET /run-simulation.
type summaryResponse struct {
	domain.SummaryStatistics
	RunID  string         `json:"run_id"`
	Seed   uint64         `json:"seed"`
	Charts *report.Charts `json:"charts,omitempty"`
}

type runResponse struct {
	domain.SimulationRun
	Charts *report.Charts `json:"charts,omitempty"`
}

// RunDefault simulates the configured portfolio. Query parameters
// num_simulations, seed, workers and charts are optional.
func (h *SimulationHandler) RunDefault(c *gin.Context) {
	var req domain.SimulationRequest

	n, present, err := queryInt(c, "num_simulations")
	if err != nil {
		writeError(c, err)
		return
	}
	if present {
		req.NumSimulations = &n
	}
	if req.Workers, _, err = queryInt(c, "workers"); err != nil {
		writeError(c, err)
		return
	}
	if raw := c.Query("seed"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(c, errors.Wrapf(domain.ErrInvalidInput, "seed %q is not an unsigned integer", raw))
			return
		}
		req.Seed = &seed
	}
	withCharts, err := queryBool(c, "charts")
	if err != nil {
		writeError(c, err)
		return
	}

	run, err := h.service.RunSimulation(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := summaryResponse{
		SummaryStatistics: run.Summary,
		RunID:             run.ID,
		Seed:              run.Seed,
	}
	if withCharts {
		charts := report.NewCharts(run.Summary.Losses)
		resp.Charts = &charts
	}
	c.JSON(http.StatusOK, resp)
}

// Create runs the simulation described by a JSON body.
func (h *SimulationHandler) Create(c *gin.Context) {
	if c.ContentType() != gin.MIMEJSON {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
		return
	}

	var req domain.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	withCharts, err := queryBool(c, "charts")
	if err != nil {
		writeError(c, err)
		return
	}

	run, err := h.service.RunSimulation(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := runResponse{SimulationRun: run}
	if withCharts {
		charts := report.NewCharts(run.Summary.Losses)
		resp.Charts = &charts
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SimulationHandler) Get(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *SimulationHandler) List(c *gin.Context) {
	limit, _, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// queryInt reports whether the parameter was given at all, so an explicit 0
// can be told apart from an absent one.
func queryInt(c *gin.Context, name string) (int, bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, errors.Wrapf(domain.ErrInvalidInput, "%s %q is not an integer", name, raw)
	}
	return v, true, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(domain.ErrInvalidInput, "%s %q is not a boolean", name, raw)
	}
	return v, nil
}
