// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package osstats

// Point is one downsampled (x, y) sample of a resource-usage graph.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Graph is a labeled time series, downsampled for embedding in a run report.
type Graph struct {
	Xmetric string  `json:"x_metric"`
	Ymetric string  `json:"y_metric"`
	Points  []Point `json:"points"`
}

// OSStats is the host resource-usage summary attached to a run report
// (spec §6: implementations persist run telemetry alongside results).
type OSStats struct {
	AvgMemUsagePct float64 `json:"avg_mem_usage_pct"`
	MaxMemUsagePct float64 `json:"max_mem_usage_pct"`
	AvgCPUUsagePct float64 `json:"avg_cpu_usage_pct"`
	MaxCPUUsagePct float64 `json:"max_cpu_usage_pct"`
	TotalMemMB     float64 `json:"total_mem_mb"`
	CPUCores       int     `json:"cpu_cores"`
	MemGraph       *Graph  `json:"mem_graph"`
	CPUGraph       *Graph  `json:"cpu_graph"`
}
