// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command heroine-layout runs a headless layout session: it generates a
// graph, ticks the simulation, and reports convergence statistics. Useful
// for smoke-testing a GPU driver and for comparing algorithms.
//
//	heroine-layout -nodes 5000 -edges 8000 -algorithm barnes-hut -ticks 300
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	heroine "github.com/tomWhiting/heroine-graph"
)

func main() {
	var (
		nodeCount = flag.Int("nodes", 2000, "number of nodes")
		edgeCount = flag.Int("edges", 3000, "number of random edges")
		algorithm = flag.String("algorithm", heroine.AlgoN2, "repulsion algorithm")
		ticks     = flag.Int("ticks", 300, "ticks to simulate")
		seed      = flag.Int64("seed", 1, "random seed for the generated graph")
		software  = flag.Bool("software", false, "force the software simulator")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		heroine.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts := []heroine.Option{
		heroine.WithAlgorithm(*algorithm),
		heroine.WithSoftwareFallback(),
	}
	if *software {
		opts = append(opts, heroine.WithSoftwareSimulation())
	}

	eng, err := heroine.NewEngine(opts...)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer eng.Close()

	if err := eng.LoadTyped(generate(*nodeCount, *edgeCount, *seed)); err != nil {
		log.Fatalf("load: %v", err)
	}

	eng.Start()
	start := time.Now()
	for i := 0; i < *ticks; i++ {
		if err := eng.Tick(); err != nil {
			log.Fatalf("tick %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if err := eng.SyncPositions(); err != nil {
		log.Fatalf("sync: %v", err)
	}
	bounds, ok := eng.SceneBounds()
	fmt.Printf("algorithm: %s\n", eng.ForceAlgorithm())
	fmt.Printf("nodes: %d, edges: %d\n", eng.NodeCount(), eng.EdgeCount())
	fmt.Printf("ticks: %d in %v (%.2f ms/tick)\n",
		*ticks, elapsed.Round(time.Millisecond),
		float64(elapsed.Milliseconds())/float64(*ticks))
	fmt.Printf("alpha: %.5f\n", eng.Alpha())
	if ok {
		fmt.Printf("bounds: [%.1f, %.1f] x [%.1f, %.1f]\n",
			bounds.MinX, bounds.MaxX, bounds.MinY, bounds.MaxY)
	}
}

// generate builds a random columnar graph: nodes carry no positions (the
// engine seeds them) and each edge joins two uniformly random nodes, a
// self-loop being shifted to the next node.
func generate(nodes, edges int, seed int64) heroine.TypedGraph {
	rng := rand.New(rand.NewSource(seed))
	g := heroine.TypedGraph{
		NodeCount:   nodes,
		EdgeCount:   edges,
		EdgeSources: make([]uint32, edges),
		EdgeTargets: make([]uint32, edges),
		Weights:     make([]float32, edges),
	}
	for i := 0; i < edges; i++ {
		src := uint32(rng.Intn(nodes))
		tgt := uint32(rng.Intn(nodes))
		if src == tgt {
			tgt = (tgt + 1) % uint32(nodes)
		}
		g.EdgeSources[i] = src
		g.EdgeTargets[i] = tgt
		g.Weights[i] = 1
	}
	return g
}
