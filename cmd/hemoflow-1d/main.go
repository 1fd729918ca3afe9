// hemoflow-1d integrates the nonlinear 1D blood-flow equations on a vessel
// network read from a JSON mesh, distributing the vessels over the configured
// ranks and writing periodic vessel-tip output and checkpoints.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/perfusion-lab/hemoflow/pkg/comm"
	"github.com/perfusion-lab/hemoflow/pkg/config"
	"github.com/perfusion-lab/hemoflow/pkg/dofmap"
	"github.com/perfusion-lab/hemoflow/pkg/flow"
	"github.com/perfusion-lab/hemoflow/pkg/logging"
	"github.com/perfusion-lab/hemoflow/pkg/meshio"
	"github.com/perfusion-lab/hemoflow/pkg/metrics"
	"github.com/perfusion-lab/hemoflow/pkg/network"
	"github.com/perfusion-lab/hemoflow/pkg/partition"
	"github.com/perfusion-lab/hemoflow/pkg/writer"
)

func main() {
	var (
		configPath = flag.String("config", "sim.yaml", "Simulation configuration file")
		resumePath = flag.String("resume", "", "Checkpoint file to resume from")
		runID      = flag.String("run-id", "", "Run identifier (default: random)")
	)
	flag.Parse()

	if err := run(*configPath, *resumePath, *runID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, resumePath, runID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if runID == "" {
		runID = writer.NewRunID()
	}

	log := logging.DefaultLogger().With(
		logging.Component("hemoflow-1d"),
		logging.Rank(cfg.Transport.Rank),
		logging.String("run_id", runID),
	)

	g, err := meshio.ReadGraph(cfg.MeshFile, cfg.BoundaryFile, cfg.HeartAmplitude)
	if err != nil {
		return err
	}
	log.Info("network loaded",
		logging.String("mesh", cfg.MeshFile),
		logging.Int("vessels", g.NumEdges()),
		logging.Int("vertices", g.NumVertices()),
	)

	size := cfg.Size()
	if err := partition.Apply(g, partition.NewWorkWeighted(g, size, cfg.Degree)); err != nil {
		return err
	}

	var c comm.Communicator
	switch cfg.Transport.Kind {
	case "bus":
		world, err := comm.NewBusWorld(cfg.Transport.Rank, cfg.Transport.PeerAddrs)
		if err != nil {
			return err
		}
		c = world
	default:
		c = comm.NewLocalWorld(1).Communicator(0)
	}
	defer c.Close()

	m, err := dofmap.Create(c, g, 2, cfg.Degree, true)
	if err != nil {
		return err
	}

	reg := metrics.DefaultRegistry()
	rank := c.Rank()
	reg.ActiveEdges.Set(float64(len(g.ActiveEdgeIDs(rank))))
	lo, hi := m.OwnedRange()
	reg.ActiveDofs.Set(float64(hi - lo))
	pm := partition.ComputeMetrics(g, size)
	reg.SharedVertices.Set(float64(pm.SharedVertices))

	method := flow.SSPRK2
	if cfg.Method == "ssp-rk3" {
		method = flow.SSPRK3
	}
	s := flow.NewIntegrator(c, g, m, method, reg)

	u := make([]float64, m.GlobalDofs())
	tNow := 0.0
	if resumePath != "" {
		tNow, u, err = writer.ReadCheckpoint(resumePath, writer.LayoutFingerprint(m))
		if err != nil {
			return err
		}
		log.Info("resumed from checkpoint", logging.SimTime(tNow), logging.String("path", resumePath))
	} else if err := flow.ApplyRestState(g, m, rank, u); err != nil {
		return err
	}

	tau := cfg.Tau
	if tau == 0 {
		tau = flow.StableTimestep(g, cfg.Degree)
		log.Info("timestep from stability bound", logging.Float64("tau", tau))
	}

	if err := writer.EnsureDir(cfg.Output.Directory); err != nil {
		return err
	}
	tips, err := writer.NewTipCSVWriter(cfg.Output.Directory, runID, rank)
	if err != nil {
		return err
	}
	defer tips.Close()
	acc := flow.NewFlowAccumulator(g, rank)

	log.Info("starting integration",
		logging.Float64("t_end", cfg.TEnd),
		logging.Float64("tau", tau),
		logging.String("method", method.String()),
		logging.Int("size", size),
	)

	step := 0
	for tNow < cfg.TEnd-0.5*tau {
		if err := s.Step(tNow, tau, u); err != nil {
			return fmt.Errorf("step %d at t=%v: %w", step, tNow, err)
		}
		tNow += tau
		step++

		// refresh the evaluator for the step's end time before accumulating
		// the tip outflow
		if err := s.Evaluator().Init(tNow, u); err != nil {
			return err
		}
		if err := acc.Add(tNow, tau, s.Evaluator()); err != nil {
			return err
		}

		if step%cfg.Output.Interval == 0 {
			if err := writeOutput(cfg, g, m, rank, runID, tNow, u, acc, tips); err != nil {
				return err
			}
			acc.Reset()
			log.Info("output written", logging.SimTime(tNow), logging.Int("step", step))
		}
	}

	if err := writeOutput(cfg, g, m, rank, runID, tNow, u, acc, tips); err != nil {
		return err
	}
	// keep the transport up until every rank finished its final output
	if err := comm.TimedBarrier(c, reg); err != nil {
		return err
	}
	log.Info("integration finished", logging.SimTime(tNow), logging.Int("steps", step))
	return nil
}

func writeOutput(cfg config.SimulationConfig, g *network.Graph, m *dofmap.Map, rank int, runID string, tNow float64, u []float64, acc *flow.FlowAccumulator, tips *writer.TipCSVWriter) error {
	collected, err := flow.CollectVesselTips(g, m, rank, u)
	if err != nil {
		return err
	}
	for i := range collected {
		collected[i].AvgFlow = acc.AverageFlow(collected[i].Vertex)
	}
	if err := tips.Append(tNow, collected); err != nil {
		return err
	}
	if cfg.Output.Checkpoints {
		path := writer.CheckpointPath(cfg.Output.Directory, runID, rank)
		if err := writer.WriteCheckpoint(path, writer.LayoutFingerprint(m), tNow, u); err != nil {
			return err
		}
	}
	return nil
}
