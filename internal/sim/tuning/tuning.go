package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	TaskLifespanTicks        int `yaml:"task_lifespan_ticks"`
	CacheSweepEveryTicks     int `yaml:"cache_sweep_every_ticks"`
	ValidityCheckEveryTicks  int `yaml:"validity_check_every_ticks"`
	MaxTasksPerSealTick      int `yaml:"max_tasks_per_seal_tick"`
	FilterSize               int `yaml:"filter_size"`
	ProvisionSweepEveryTicks int `yaml:"provision_sweep_every_ticks"`
	ProvisionTimeoutTicks    int `yaml:"provision_timeout_ticks"`
	ProvisionRange           int `yaml:"provision_range"`

	PvPAllowed       bool `yaml:"pvp_allowed"`
	ButcherThreshold int  `yaml:"butcher_threshold"`
	BreakerStep      int  `yaml:"breaker_step"`
	ReplantTTLTicks  int  `yaml:"replant_ttl_ticks"`

	CropGrowEveryTicks int `yaml:"crop_grow_every_ticks"`

	GolemReach       int `yaml:"golem_reach"`
	GolemStepPerTick int `yaml:"golem_step_per_tick"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:          "1.0",
		TickRateHz:               5,
		SnapshotEveryTicks:       3000,
		TaskLifespanTicks:        300,
		CacheSweepEveryTicks:     100,
		ValidityCheckEveryTicks:  20,
		MaxTasksPerSealTick:      1,
		FilterSize:               9,
		ProvisionSweepEveryTicks: 100,
		ProvisionTimeoutTicks:    1200,
		ProvisionRange:           32,
		ButcherThreshold:         2,
		BreakerStep:              1,
		ReplantTTLTicks:          6000,
		CropGrowEveryTicks:       100,
		GolemReach:               2,
		GolemStepPerTick:         1,
	}
}

// Load reads a YAML tuning file; keys left out keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// applyDefaults replaces non-positive values with defaults.
func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.TickRateHz, d.TickRateHz)
	fill(&t.SnapshotEveryTicks, d.SnapshotEveryTicks)
	fill(&t.TaskLifespanTicks, d.TaskLifespanTicks)
	fill(&t.CacheSweepEveryTicks, d.CacheSweepEveryTicks)
	fill(&t.ValidityCheckEveryTicks, d.ValidityCheckEveryTicks)
	fill(&t.MaxTasksPerSealTick, d.MaxTasksPerSealTick)
	fill(&t.FilterSize, d.FilterSize)
	fill(&t.ProvisionSweepEveryTicks, d.ProvisionSweepEveryTicks)
	fill(&t.ProvisionTimeoutTicks, d.ProvisionTimeoutTicks)
	fill(&t.ProvisionRange, d.ProvisionRange)
	fill(&t.ButcherThreshold, d.ButcherThreshold)
	fill(&t.BreakerStep, d.BreakerStep)
	fill(&t.ReplantTTLTicks, d.ReplantTTLTicks)
	fill(&t.CropGrowEveryTicks, d.CropGrowEveryTicks)
	fill(&t.GolemReach, d.GolemReach)
	fill(&t.GolemStepPerTick, d.GolemStepPerTick)
}
