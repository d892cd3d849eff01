// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// config.go defines the force configuration surface. SetForceConfig never
// rejects input: out-of-range values clamp, and cross-parameter constraints
// (the t-FDP stability bound) are enforced by adjusting the offending
// value. The sanitized result is what executors actually consume.

package heroine

import "github.com/tomWhiting/heroine-graph/internal/simcore"

// Alpha decay presets: fast converges in a few hundred ticks, quality in
// roughly 34k.
const (
	AlphaDecayFast    = 2.28e-2
	AlphaDecayQuality = 2e-4
)

// GravityCurve selects the center-pull falloff of the relativity algorithm.
type GravityCurve = simcore.GravityCurve

// Gravity curve values.
const (
	GravityLinear  = simcore.GravityLinear
	GravityInverse = simcore.GravityInverse
	GravitySoft    = simcore.GravitySoft
	GravityCustom  = simcore.GravityCustom
)

// RelativityConfig tunes the hierarchical "Relativity Atlas" algorithm.
type RelativityConfig struct {
	BaseMass             float32
	ChildMassFactor      float32
	OrbitRadius          float32
	OrbitStrength        float32
	TangentialMultiplier float32
	SiblingRepulsion     float32
	CousinEnabled        bool
	CousinRepulsion      float32
	PhantomEnabled       bool
	PhantomMargin        float32
	DensityEnabled       bool
	DensityStrength      float32
	GravityCurve         GravityCurve
	GravityExponent      float32
}

// LinLogConfig tunes the LinLog energy model.
type LinLogConfig struct {
	Repulsion          float32
	AttractionExponent float32
	Gravity            float32
	StrongGravity      bool
}

// TFDPConfig tunes the t-FDP model. Alpha and Beta are constrained to
// Alpha*(1+Beta) < 1; Beta auto-reduces when the product is out of range.
type TFDPConfig struct {
	Gamma     float32
	Alpha     float32
	Beta      float32
	Repulsion float32
}

// TidyTreeConfig tunes the precomputed tidy-tree layout.
type TidyTreeConfig struct {
	LevelGap   float32
	SiblingGap float32
	SubtreeGap float32
	Horizontal bool
	Stiffness  float32
	Damping    float32
}

// CommunityConfig tunes Louvain detection and the community layout.
type CommunityConfig struct {
	Resolution    float32
	MaxIterations uint32
	CommunityGap  float32
	NodeSpacing   float32
	Stiffness     float32
	Damping       float32
	Seed          uint64
}

// CodebaseConfig tunes the nested circle-packing layout.
type CodebaseConfig struct {
	Padding     float32
	RootSpacing float32
	MinRadius   float32
	SortBySize  bool
	Stiffness   float32
	Damping     float32
}

// CollisionConfig tunes the post-integration overlap resolver.
type CollisionConfig struct {
	Enabled          bool
	Strength         float32
	RadiusMultiplier float32
	Iterations       uint32
}

// ForceConfig is the complete force configuration. The zero value is not
// useful; start from DefaultForceConfig and adjust.
type ForceConfig struct {
	RepulsionStrength    float32
	RepulsionDistanceMin float32
	RepulsionDistanceMax float32

	SpringStrength float32
	SpringLength   float32

	CenterX        float32
	CenterY        float32
	CenterStrength float32

	VelocityDecay float32
	MaxVelocity   float32
	TimeStep      float32

	// PinnedNode holds the named node at its current position; empty pins
	// none.
	PinnedNode string

	// Theta is the Barnes-Hut opening criterion, clamped to [0.1, 2].
	Theta float32

	// DepthSettlingSpread staggers integration by hierarchy depth.
	DepthSettlingSpread float32

	Collision CollisionConfig

	Relativity RelativityConfig
	LinLog     LinLogConfig
	TFDP       TFDPConfig
	TidyTree   TidyTreeConfig
	Community  CommunityConfig
	Codebase   CodebaseConfig
}

// DefaultForceConfig returns the documented defaults.
func DefaultForceConfig() ForceConfig {
	return ForceConfig{
		RepulsionStrength:    -50,
		RepulsionDistanceMin: 1,
		RepulsionDistanceMax: 1000,
		SpringStrength:       0.1,
		SpringLength:         30,
		CenterStrength:       0.01,
		VelocityDecay:        0.4,
		MaxVelocity:          50,
		TimeStep:             1,
		Theta:                0.8,
		Collision: CollisionConfig{
			Enabled:          true,
			Strength:         0.7,
			RadiusMultiplier: 1,
			Iterations:       1,
		},
		Relativity: RelativityConfig{
			BaseMass:             1,
			ChildMassFactor:      0.25,
			OrbitRadius:          40,
			OrbitStrength:        0.15,
			TangentialMultiplier: 2,
			SiblingRepulsion:     200,
			CousinRepulsion:      0.3,
			PhantomMargin:        4,
			DensityStrength:      20,
			GravityCurve:         GravitySoft,
			GravityExponent:      1,
		},
		LinLog: LinLogConfig{
			Repulsion:          10,
			AttractionExponent: 1,
			Gravity:            0.5,
		},
		TFDP: TFDPConfig{
			Gamma:     2,
			Alpha:     0.1,
			Beta:      0.3,
			Repulsion: 100,
		},
		TidyTree: TidyTreeConfig{
			LevelGap:   80,
			SiblingGap: 30,
			SubtreeGap: 40,
			Stiffness:  0.08,
			Damping:    0.12,
		},
		Community: CommunityConfig{
			Resolution:    1,
			MaxIterations: 10,
			CommunityGap:  300,
			NodeSpacing:   20,
			Stiffness:     0.08,
			Damping:       0.12,
			Seed:          1,
		},
		Codebase: CodebaseConfig{
			Padding:     10,
			RootSpacing: 120,
			MinRadius:   4,
			SortBySize:  true,
			Stiffness:   0.08,
			Damping:     0.12,
		},
	}
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize clamps every option into range and resolves cross-parameter
// constraints, producing the parameter set executors consume. It never
// fails: invalid values are corrected, not rejected.
func (c ForceConfig) sanitize() simcore.Params {
	theta := clamp32(c.Theta, 0.1, 2)
	velocityDecay := clamp32(c.VelocityDecay, 0, 1)
	timeStep := clamp32(c.TimeStep, 0.01, 10)
	maxVelocity := c.MaxVelocity
	if maxVelocity <= 0 {
		maxVelocity = 50
	}
	minDist := c.RepulsionDistanceMin
	if minDist <= 0 {
		minDist = 1
	}
	maxDist := c.RepulsionDistanceMax
	if maxDist < minDist {
		maxDist = minDist
	}

	// t-FDP stability: gamma >= 1, alpha*(1+beta) < 1 with beta reduced
	// when the product overflows.
	gamma := c.TFDP.Gamma
	if gamma < 1 {
		gamma = 1
	}
	tAlpha := clamp32(c.TFDP.Alpha, 0, 0.99)
	tBeta := c.TFDP.Beta
	if tBeta < 0 {
		tBeta = 0
	}
	if tAlpha > 0 && tAlpha*(1+tBeta) >= 1 {
		tBeta = 1/tAlpha - 1 - 1e-3
		if tBeta < 0 {
			tBeta = 0
		}
	}

	iterations := c.Collision.Iterations
	if iterations == 0 {
		iterations = 1
	}
	communityIters := c.Community.MaxIterations
	if communityIters == 0 {
		communityIters = 10
	}

	return simcore.Params{
		RepulsionStrength:    c.RepulsionStrength,
		RepulsionDistanceMin: minDist,
		RepulsionDistanceMax: maxDist,
		SpringStrength:       c.SpringStrength,
		SpringLength:         c.SpringLength,
		CenterX:              c.CenterX,
		CenterY:              c.CenterY,
		CenterStrength:       c.CenterStrength,
		VelocityDecay:        velocityDecay,
		MaxVelocity:          maxVelocity,
		TimeStep:             timeStep,
		Theta:                theta,
		DepthSettlingSpread:  clamp32(c.DepthSettlingSpread, 0, 4),

		CollisionEnabled:          c.Collision.Enabled,
		CollisionStrength:         clamp32(c.Collision.Strength, 0, 1),
		CollisionRadiusMultiplier: clamp32(c.Collision.RadiusMultiplier, 0.1, 10),
		CollisionIterations:       iterations,

		Relativity: simcore.RelativityParams{
			BaseMass:             max32(c.Relativity.BaseMass, 0.01),
			ChildMassFactor:      clamp32(c.Relativity.ChildMassFactor, 0, 4),
			OrbitRadius:          max32(c.Relativity.OrbitRadius, 1),
			OrbitStrength:        clamp32(c.Relativity.OrbitStrength, 0, 4),
			TangentialMultiplier: clamp32(c.Relativity.TangentialMultiplier, 0, 16),
			SiblingRepulsion:     max32(c.Relativity.SiblingRepulsion, 0),
			CousinEnabled:        c.Relativity.CousinEnabled,
			CousinRepulsion:      clamp32(c.Relativity.CousinRepulsion, 0, 4),
			PhantomEnabled:       c.Relativity.PhantomEnabled,
			PhantomMargin:        clamp32(c.Relativity.PhantomMargin, 0, 64),
			DensityEnabled:       c.Relativity.DensityEnabled,
			DensityStrength:      max32(c.Relativity.DensityStrength, 0),
			GravityCurve:         c.Relativity.GravityCurve,
			GravityExponent:      clamp32(c.Relativity.GravityExponent, -2, 2),
		},
		LinLog: simcore.LinLogParams{
			Repulsion:          max32(c.LinLog.Repulsion, 0),
			AttractionExponent: clamp32(c.LinLog.AttractionExponent, 0, 4),
			Gravity:            max32(c.LinLog.Gravity, 0),
			StrongGravity:      c.LinLog.StrongGravity,
		},
		TFDP: simcore.TFDPParams{
			Gamma:     gamma,
			Alpha:     tAlpha,
			Beta:      tBeta,
			Repulsion: max32(c.TFDP.Repulsion, 0),
		},
		TidyTree: simcore.TidyTreeParams{
			LevelGap:   max32(c.TidyTree.LevelGap, 1),
			SiblingGap: max32(c.TidyTree.SiblingGap, 1),
			SubtreeGap: max32(c.TidyTree.SubtreeGap, 0),
			Horizontal: c.TidyTree.Horizontal,
			Stiffness:  clamp32(c.TidyTree.Stiffness, 0.001, 1),
			Damping:    clamp32(c.TidyTree.Damping, 0, 1),
		},
		Community: simcore.CommunityParams{
			Resolution:    clamp32(c.Community.Resolution, 0.05, 10),
			MaxIterations: communityIters,
			CommunityGap:  max32(c.Community.CommunityGap, 1),
			NodeSpacing:   max32(c.Community.NodeSpacing, 1),
			Stiffness:     clamp32(c.Community.Stiffness, 0.001, 1),
			Damping:       clamp32(c.Community.Damping, 0, 1),
			Seed:          c.Community.Seed,
		},
		Codebase: simcore.CodebaseParams{
			Padding:     max32(c.Codebase.Padding, 0),
			RootSpacing: max32(c.Codebase.RootSpacing, 0),
			MinRadius:   max32(c.Codebase.MinRadius, 0.5),
			SortBySize:  c.Codebase.SortBySize,
			Stiffness:   clamp32(c.Codebase.Stiffness, 0.001, 1),
			Damping:     clamp32(c.Codebase.Damping, 0, 1),
		},
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
