package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/jaws/featureflag"
	"github.com/aukilabs/jaws/generator"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest = "bad_request"

	// Request bodies larger than this are rejected.
	maxBodySize = 1 << 16
)

// API serves the worlds over a JSON REST interface.
type API struct {
	Worlds *models.WorldStore

	// Builds the world tree of a POST /worlds request. The request options
	// are merged into Defaults before the call.
	NewWorld func(generator.Options) (*quadtree.Tree[*models.Cell], error)

	Defaults     generator.Options
	FeatureFlags featureflag.FeatureFlag
}

// Routes registers the API handlers on the given mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /worlds", a.handleCreateWorld)
	mux.HandleFunc("GET /worlds", a.handleListWorlds)
	mux.HandleFunc("GET /worlds/{world}", a.withWorld(a.handleGetWorld))
	mux.HandleFunc("DELETE /worlds/{world}", a.withWorld(a.handleDeleteWorld))
	mux.HandleFunc("GET /worlds/{world}/validate", a.withWorld(a.handleValidateWorld))
	mux.HandleFunc("GET /worlds/{world}/cells/{cell}", a.withWorld(a.handleGetCell))
	mux.HandleFunc("POST /worlds/{world}/cells/{cell}/split", a.withWorld(a.handleSplit))
	mux.HandleFunc("POST /worlds/{world}/cells/{cell}/merge", a.withWorld(a.handleMerge))
	mux.HandleFunc("GET /worlds/{world}/cells/{cell}/neighbors", a.withWorld(a.handleNeighbors))
	mux.HandleFunc("GET /worlds/{world}/cells/{cell}/area", a.withWorld(a.handleArea))
}

type CreateWorldRequest struct {
	Topology    string   `json:"topology,omitempty"`
	FaceArea    float64  `json:"face_area,omitempty"`
	Layers      int      `json:"layers,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	Humidity    *float32 `json:"humidity,omitempty"`
	Pressure    *float32 `json:"pressure,omitempty"`
}

type WorldResponse struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	CellCount   int            `json:"cell_count"`
	Subscribers int            `json:"subscribers"`
	Cells       []*models.Cell `json:"cells,omitempty"`
}

type CellResponse struct {
	Cell  *models.Cell `json:"cell"`
	Depth int          `json:"depth"`
}

type CellsResponse struct {
	Cells []*models.Cell `json:"cells"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (a *API) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var req CreateWorldRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, r, errors.New("decoding request body failed").
				WithType(ErrTypeBadRequest).
				Wrap(err))
			return
		}
	}

	opts := a.Defaults
	if req.Topology != "" {
		topology, err := generator.ParseTopology(req.Topology)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opts.Topology = topology
	}
	if req.FaceArea != 0 {
		opts.FaceArea = req.FaceArea
	}
	if req.Layers != 0 {
		opts.Layers = req.Layers
	}
	if req.Temperature != nil {
		opts.Temperature = req.Temperature
	}
	if req.Humidity != nil {
		opts.Humidity = req.Humidity
	}
	if req.Pressure != nil {
		opts.Pressure = req.Pressure
	}

	newWorld := a.NewWorld
	if newWorld == nil {
		newWorld = generator.Generate
	}

	tree, err := newWorld(opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	world := models.NewWorld(a.Worlds.NewID(), tree)
	if err := a.Worlds.Add(r.Context(), world); err != nil {
		writeError(w, r, err)
		return
	}

	logs.WithTag("world_id", world.WorldUUID).
		WithTag("topology", opts.Topology).
		WithTag("cells", world.CellCount()).
		Info("world created")

	writeJSON(w, r, http.StatusCreated, newWorldResponse(world))
}

func (a *API) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds := a.Worlds.List()

	res := make([]WorldResponse, len(worlds))
	for i, world := range worlds {
		res[i] = newWorldResponse(world)
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) handleGetWorld(w http.ResponseWriter, r *http.Request, world *models.World) {
	cells, err := world.Cells()
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := newWorldResponse(world)
	res.Cells = cells
	writeJSON(w, r, http.StatusOK, res)
}

func (a *API) handleDeleteWorld(w http.ResponseWriter, r *http.Request, world *models.World) {
	a.Worlds.Remove(r.Context(), world)

	logs.WithTag("world_id", world.WorldUUID).Info("world deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleValidateWorld(w http.ResponseWriter, r *http.Request, world *models.World) {
	if err := world.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetCell(w http.ResponseWriter, r *http.Request, world *models.World) {
	id := r.PathValue("cell")

	cell, err := world.Cell(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	depth, err := world.Depth(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, CellResponse{
		Cell:  cell,
		Depth: depth,
	})
}

func (a *API) handleSplit(w http.ResponseWriter, r *http.Request, world *models.World) {
	children, err := world.Split(r.PathValue("cell"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CellsResponse{Cells: children[:]})
}

func (a *API) handleMerge(w http.ResponseWriter, r *http.Request, world *models.World) {
	if err := a.FeatureFlags.Check(featureflag.FlagDisableMerge); err != nil {
		writeError(w, r, err)
		return
	}

	depth, err := queryInt(r, "depth")
	if err != nil {
		writeError(w, r, err)
		return
	}

	merged, err := world.Merge(r.PathValue("cell"), depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CellResponse{
		Cell:  merged,
		Depth: depth,
	})
}

func (a *API) handleNeighbors(w http.ResponseWriter, r *http.Request, world *models.World) {
	direction, err := queryDirection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	neighbors, err := world.Neighbors(r.PathValue("cell"), direction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CellsResponse{Cells: neighbors})
}

func (a *API) handleArea(w http.ResponseWriter, r *http.Request, world *models.World) {
	depth, err := queryInt(r, "depth")
	if err != nil {
		writeError(w, r, err)
		return
	}

	area, err := world.Area(r.PathValue("cell"), depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CellsResponse{Cells: area})
}

func (a *API) withWorld(h func(http.ResponseWriter, *http.Request, *models.World)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		world, err := a.Worlds.Get(r.PathValue("world"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, world)
	}
}

func newWorldResponse(w *models.World) WorldResponse {
	return WorldResponse{
		ID:          w.WorldUUID,
		CreatedAt:   w.CreatedAt,
		CellCount:   w.CellCount(),
		Subscribers: w.SubscriberCount(),
	}
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)

	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid integer query parameter").
			WithType(ErrTypeBadRequest).
			WithTag("name", name).
			WithTag("value", v).
			Wrap(err)
	}
	return i, nil
}

func queryDirection(r *http.Request) (quadtree.Direction, error) {
	if d := r.URL.Query().Get("direction"); d != "" {
		return quadtree.ParseDirection(d)
	}

	x, err := queryInt(r, "x")
	if err != nil {
		return 0, err
	}
	y, err := queryInt(r, "y")
	if err != nil {
		return 0, err
	}
	return quadtree.DirectionFromVector(x, y)
}

// StatusCode returns the HTTP status matching the type of the given error.
func StatusCode(err error) int {
	switch errors.Type(err) {
	case models.ErrTypeWorldNotFound,
		models.ErrTypeCellNotFound,
		quadtree.ErrTypeNotFound:
		return http.StatusNotFound

	case ErrTypeBadRequest,
		quadtree.ErrTypeInvalidDepth,
		quadtree.ErrTypeInvalidDirection,
		generator.ErrTypeInvalidTopology,
		generator.ErrTypeInvalidOptions,
		models.ErrTypeCellNotSplittable,
		models.ErrTypeCellMismatch:
		return http.StatusBadRequest

	case quadtree.ErrTypeDuplicatePayload,
		models.ErrTypeWorldClosed,
		featureflag.ErrTypeFeatureDisabled:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logs.WithTag("path", r.URL.Path).Error(err)
	} else {
		logs.WithTag("path", r.URL.Path).Debug(err)
	}

	typ := errors.Type(err)
	if typ == "" {
		typ = "internal"
	}

	writeJSON(w, r, status, ErrorResponse{
		Type:    typ,
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.WithTag("path", r.URL.Path).Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// LogRequests logs the duration of each request at debug level.
func LogRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)

		logs.WithTag("method", r.Method).
			WithTag("path", r.URL.Path).
			WithTag("duration", time.Since(start)).
			Debug("request handled")
	})
}
