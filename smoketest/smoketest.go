// Package smoketest runs an in-process self check of the world topology.
package smoketest

import (
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/jaws/generator"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	defaultRefineDepth = 4
)

type Options struct {
	// The topology of the throwaway world. Defaults to a cube.
	Topology generator.Topology

	// The number of nested splits done during the refine step.
	RefineDepth int

	TreeOptions []quadtree.Option
}

type StepResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type Results struct {
	Success  bool          `json:"success"`
	Topology string        `json:"topology"`
	Duration time.Duration `json:"duration"`
	Steps    []StepResult  `json:"steps"`
}

// Run builds a throwaway world and checks its topology invariants step by
// step. It stops at the first failing step.
func Run(ctx context.Context, opts Options) Results {
	if opts.Topology == "" {
		opts.Topology = generator.TopologyCube
	}
	if opts.RefineDepth <= 0 {
		opts.RefineDepth = defaultRefineDepth
	}

	r := runner{opts: opts}
	start := time.Now()

	res := Results{
		Success:  true,
		Topology: string(opts.Topology),
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"generate", r.generate},
		{"up_cycle", r.upCycle},
		{"refine", r.refine},
		{"neighbor_closure", r.neighborClosure},
		{"merge_round_trip", r.mergeRoundTrip},
		{"validate", r.validate},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			res.Success = false
			res.Steps = append(res.Steps, StepResult{Name: s.name, Error: err.Error()})
			break
		}

		stepStart := time.Now()
		err := s.run()

		step := StepResult{
			Name:     s.name,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			step.Error = err.Error()
			res.Success = false
		}
		res.Steps = append(res.Steps, step)

		if err != nil {
			break
		}
	}

	res.Duration = time.Since(start)
	return res
}

// HandleSmokeTest runs the smoke test and answers its results. The status is
// 500 when a step failed.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			select {
			case <-r.Context().Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		res := Run(ctx, opts)
		status := http.StatusOK
		if !res.Success {
			status = http.StatusInternalServerError
			logs.WithTag("results", res).
				Warn(errors.New("smoke test failed").WithType(ErrTypeSmokeTestFailed))
		}

		b, err := json.Marshal(res)
		if err != nil {
			logs.Error(errors.New("encoding smoke test results failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

type runner struct {
	opts       Options
	world      *models.World
	initial    int
	refinedIDs []string
}

func (r *runner) generate() error {
	tree, err := generator.Generate(generator.Options{
		Topology:    r.opts.Topology,
		TreeOptions: r.opts.TreeOptions,
	})
	if err != nil {
		return err
	}

	r.world = models.NewWorld(0, tree)
	r.initial = r.world.CellCount()
	return nil
}

// upCycle walks up from the first face and expects to come back to it after
// one lap around the faces.
func (r *runner) upCycle() error {
	cells, err := r.world.Cells()
	if err != nil {
		return err
	}

	start := cells[0]
	current := start

	for i := 0; i < r.initial; i++ {
		neighbors, err := r.world.Neighbors(current.ID, quadtree.Up)
		if err != nil {
			return err
		}
		if len(neighbors) != 1 {
			return errors.New("face has more than one up neighbor").
				WithType(ErrTypeSmokeTestFailed).
				WithTag("cell_id", current.ID).
				WithTag("neighbors", len(neighbors))
		}
		current = neighbors[0]
	}

	if current != start {
		return errors.New("walking up does not cycle through the faces").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("start", start.ID).
			WithTag("end", current.ID)
	}
	return nil
}

// refine splits the first face and keeps splitting the child touching its
// top right corner, which makes the refined area border a seam.
func (r *runner) refine() error {
	cells, err := r.world.Cells()
	if err != nil {
		return err
	}

	current := cells[0]

	for i := 0; i < r.opts.RefineDepth; i++ {
		children, err := r.world.Split(current.ID)
		if err != nil {
			return err
		}
		current = children[quadtree.TopRight]
	}

	r.refinedIDs = append(r.refinedIDs, current.ID)
	return r.world.Validate()
}

// neighborClosure checks that adjacency is symmetric: a cell found next to
// another in a direction finds it back in the opposite direction.
func (r *runner) neighborClosure() error {
	cells, err := r.world.Cells()
	if err != nil {
		return err
	}

	for _, c := range cells {
		for _, d := range []quadtree.Direction{quadtree.Up, quadtree.Right, quadtree.Down, quadtree.Left} {
			neighbors, err := r.world.Neighbors(c.ID, d)
			if err != nil {
				return err
			}

			for _, n := range neighbors {
				back, err := r.world.Neighbors(n.ID, d.Opposite())
				if err != nil {
					return err
				}

				if !containsCell(back, c) {
					return errors.New("neighbor relation is not symmetric").
						WithType(ErrTypeSmokeTestFailed).
						WithTag("cell_id", c.ID).
						WithTag("neighbor_id", n.ID).
						WithTag("direction", d)
				}
			}
		}
	}
	return nil
}

func (r *runner) mergeRoundTrip() error {
	for _, id := range r.refinedIDs {
		if _, err := r.world.Merge(id, 0); err != nil {
			return err
		}
	}

	if count := r.world.CellCount(); count != r.initial {
		return errors.New("merging did not restore the faces").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("cells", count).
			WithTag("expected_cells", r.initial)
	}
	return nil
}

func (r *runner) validate() error {
	return r.world.Validate()
}

func containsCell(cells []*models.Cell, c *models.Cell) bool {
	for _, v := range cells {
		if v == c {
			return true
		}
	}
	return false
}
