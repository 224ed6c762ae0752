// Package analytics derives ranked decision signals from a committed snapshot.
//
// Every operation is a pure function of (snapshot, normalized parameters):
// no hidden state, no I/O. Ranked outputs are total orders; scores are
// compared in fixed point and ties fall through to documented keys, ending
// with an entity id.
package analytics

// Config holds the engine tunables.
type Config struct {
	FormWindow     int
	MinSamples     int
	FormDecay      float64
	TrendThreshold float64

	HomeAdvantage  float64
	FDRWeight      float64
	FixtureHorizon int

	TransferFormWeight    float64
	TransferFixtureWeight float64
	TransferPriceWeight   float64
	ClubLimit             int

	DifferentialMaxOwnership float64
	DifferentialMinForm      float64

	BogeyMinEncounters int
	BogeyPointsDelta   float64
	BogeyTeamPPG       float64
	FavoredTeamPPG     float64
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		FormWindow:               5,
		MinSamples:               3,
		FormDecay:                0.8,
		TrendThreshold:           1.0,
		HomeAdvantage:            0.5,
		FDRWeight:                0.5,
		FixtureHorizon:           5,
		TransferFormWeight:       1.0,
		TransferFixtureWeight:    0.3,
		TransferPriceWeight:      0.2,
		ClubLimit:                3,
		DifferentialMaxOwnership: 10.0,
		DifferentialMinForm:      3.0,
		BogeyMinEncounters:       3,
		BogeyPointsDelta:         1.0,
		BogeyTeamPPG:             1.0,
		FavoredTeamPPG:           2.0,
	}
}

// Engine runs analytics operations.
type Engine struct {
	cfg Config
}

// New creates an Engine. Zero-valued tunables fall back to DefaultConfig.
func New(cfg Config) *Engine {
	d := DefaultConfig()
	if cfg.FormWindow <= 0 {
		cfg.FormWindow = d.FormWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = d.MinSamples
	}
	if cfg.FormDecay <= 0 || cfg.FormDecay > 1 {
		cfg.FormDecay = d.FormDecay
	}
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = d.TrendThreshold
	}
	if cfg.FDRWeight < 0 || cfg.FDRWeight > 1 {
		cfg.FDRWeight = d.FDRWeight
	}
	if cfg.FixtureHorizon <= 0 {
		cfg.FixtureHorizon = d.FixtureHorizon
	}
	if cfg.ClubLimit <= 0 {
		cfg.ClubLimit = d.ClubLimit
	}
	if cfg.BogeyMinEncounters <= 0 {
		cfg.BogeyMinEncounters = d.BogeyMinEncounters
	}
	if cfg.TransferFormWeight == 0 && cfg.TransferFixtureWeight == 0 && cfg.TransferPriceWeight == 0 {
		cfg.TransferFormWeight = d.TransferFormWeight
		cfg.TransferFixtureWeight = d.TransferFixtureWeight
		cfg.TransferPriceWeight = d.TransferPriceWeight
	}
	if cfg.DifferentialMaxOwnership <= 0 {
		cfg.DifferentialMaxOwnership = d.DifferentialMaxOwnership
	}
	if cfg.BogeyPointsDelta <= 0 {
		cfg.BogeyPointsDelta = d.BogeyPointsDelta
	}
	if cfg.FavoredTeamPPG <= 0 {
		cfg.BogeyTeamPPG, cfg.FavoredTeamPPG = d.BogeyTeamPPG, d.FavoredTeamPPG
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective tunables.
func (e *Engine) Config() Config { return e.cfg }
