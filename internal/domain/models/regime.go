package models

import "fmt"

// RegimeID is the volatility rank of a fitted cluster: 0 is the calmest.
type RegimeID int

// RegimeUnknown marks an observation that has not been classified.
const RegimeUnknown RegimeID = -1

// RegimeLabel is the semantic name attached to a RegimeID.
type RegimeLabel string

const (
	LabelBullCalm    RegimeLabel = "Bull/Calm"
	LabelTransition  RegimeLabel = "Transition"
	LabelCrisisCrash RegimeLabel = "Crisis/Crash"
)

// OrdinalLabel names a regime by its VIX rank when the model is not 3-way.
func OrdinalLabel(rank int) RegimeLabel {
	return RegimeLabel(fmt.Sprintf("Regime_%d (VIX_Rank_%d)", rank, rank))
}

// Regime is the classifier output for one observation.
type Regime struct {
	ID    RegimeID    `json:"id"`
	Label RegimeLabel `json:"label"`
}

// RegimeStat summarizes one fitted regime.
type RegimeStat struct {
	ID         RegimeID    `json:"id"`
	Label      RegimeLabel `json:"label"`
	RawCluster int         `json:"raw_cluster"`
	Count      int         `json:"count"`
	MeanLogVIX float64     `json:"mean_log_vix"`
	Weight     float64     `json:"weight"`
}

// DefaultLabel names id for a model fitted with the given number of components.
func DefaultLabel(id RegimeID, components int) RegimeLabel {
	if components == 3 && id >= 0 && id <= 2 {
		return []RegimeLabel{LabelBullCalm, LabelTransition, LabelCrisisCrash}[id]
	}
	return OrdinalLabel(int(id))
}
