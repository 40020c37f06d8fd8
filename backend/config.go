package main

import "sync"

type Config struct {
	// Evaluation weights (centipawns unless noted)
	EvalCheckPenalty        int `json:"eval_check_penalty"`
	CastlingBonus           int `json:"castling_bonus"`
	CenterControlBonus      int `json:"center_control_bonus"`
	DevelopmentPenalty      int `json:"development_penalty"`
	RimKnightPenalty        int `json:"rim_knight_penalty"`
	EarlyQueenTradePenalty  int `json:"early_queen_trade_penalty"`
	KingExposurePenalty     int `json:"king_exposure_penalty"`
	EndgameMaterialCp       int `json:"endgame_material_cp"`
	MiddlegameMinMaterialCp int `json:"middlegame_min_material_cp"`

	// Move ordering
	OrderCaptureBase    int `json:"order_capture_base"`
	OrderCheckBonus     int `json:"order_check_bonus"`
	OrderCastleBonus    int `json:"order_castle_bonus"`
	OrderDevelopBonus   int `json:"order_develop_bonus"`
	OrderPromotionBonus int `json:"order_promotion_bonus"`
	HangingPenaltyScale int `json:"hanging_penalty_scale"`
	HangingMinValueCp   int `json:"hanging_min_value_cp"`

	// Search
	TtSize            int   `json:"tt_size"`
	NodeCheckInterval int64 `json:"node_check_interval"`

	// Time management
	TimeBudgetBaseMs    int  `json:"time_budget_base_ms"`
	CriticalThreshold   int  `json:"critical_threshold"`
	VeryCriticalCutoff  int  `json:"very_critical_cutoff"`
	TimeBankCapMs       int  `json:"time_bank_cap_ms"`
	HardTimeoutGraceMs  int  `json:"hard_timeout_grace_ms"`
	EnableTimeBank      bool `json:"enable_time_bank"`
	MiddlegameFactorPct int  `json:"middlegame_factor_pct"`

	// Criticality factor weights (each strictly positive so adding a
	// qualifying feature can never lower the score)
	CritCheckWeight      int `json:"crit_check_weight"`
	CritCaptureWeight    int `json:"crit_capture_weight"`
	CritImbalanceWeight  int `json:"crit_imbalance_weight"`
	CritEndgameWeight    int `json:"crit_endgame_weight"`
	CritMateWeight       int `json:"crit_mate_weight"`
	CritHangingWeight    int `json:"crit_hanging_weight"`
	CritForcingWeight    int `json:"crit_forcing_weight"`
	CritImbalanceFloorCp int `json:"crit_imbalance_floor_cp"`
	CritEndgamePieceMax  int `json:"crit_endgame_piece_max"`

	// Teaching bias
	BiasConfidenceFloor float64 `json:"bias_confidence_floor"`
	BiasMagnitudeCap    float64 `json:"bias_magnitude_cap"`
	BiasMaterialGuardCp int     `json:"bias_material_guard_cp"`
	BiasTopSignatures   int     `json:"bias_top_signatures"`

	// Teaching priority weights
	PriorityConfidenceWeight float64 `json:"priority_confidence_weight"`
	PriorityMasteryWeight    float64 `json:"priority_mastery_weight"`
	PriorityRecencyWeight    float64 `json:"priority_recency_weight"`
	PrioritySeverityWeight   float64 `json:"priority_severity_weight"`

	// Weakness store
	WeaknessStorePath string `json:"weakness_store_path"`
	WeaknessStoreCap  int    `json:"weakness_store_cap"`

	LogSearchStats bool `json:"log_search_stats"`
}

func DefaultConfig() Config {
	return Config{
		EvalCheckPenalty:        50,
		CastlingBonus:           30,
		CenterControlBonus:      20,
		DevelopmentPenalty:      12,
		RimKnightPenalty:        25,
		EarlyQueenTradePenalty:  60,
		KingExposurePenalty:     8,
		EndgameMaterialCp:       1500,
		MiddlegameMinMaterialCp: 2600,

		OrderCaptureBase:    1000,
		OrderCheckBonus:     60, // low enough that checks are never chased over material
		OrderCastleBonus:    50,
		OrderDevelopBonus:   30,
		OrderPromotionBonus: 800,
		HangingPenaltyScale: 2,
		HangingMinValueCp:   300, // minors and up; recapturable pawns are noise

		TtSize:            1 << 16,
		NodeCheckInterval: 1024,

		TimeBudgetBaseMs:    250,
		CriticalThreshold:   60,
		VeryCriticalCutoff:  80,
		TimeBankCapMs:       4000,
		HardTimeoutGraceMs:  150,
		EnableTimeBank:      true,
		MiddlegameFactorPct: 150,

		CritCheckWeight:      25,
		CritCaptureWeight:    10,
		CritImbalanceWeight:  10,
		CritEndgameWeight:    10,
		CritMateWeight:       20,
		CritHangingWeight:    15,
		CritForcingWeight:    15,
		CritImbalanceFloorCp: 300,
		CritEndgamePieceMax:  10,

		BiasConfidenceFloor: 0.7,
		BiasMagnitudeCap:    0.15,
		BiasMaterialGuardCp: 150,
		BiasTopSignatures:   3,

		PriorityConfidenceWeight: 0.35,
		PriorityMasteryWeight:    0.30,
		PriorityRecencyWeight:    0.15,
		PrioritySeverityWeight:   0.20,

		WeaknessStorePath: "weakness_store",
		WeaknessStoreCap:  50,

		LogSearchStats: false,
	}
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) {
	c.mu.Lock()
	c.config = newConfig
	c.mu.Unlock()
}
