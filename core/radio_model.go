package core

import "math"

// RadioModel describes the RF characteristics shared by the stations in a
// scenario and provides a simple free-space link-budget SNR estimate. The
// constants are deliberately conservative: the point is a monotonic
// distance-vs-quality relationship, not an engineering-grade link budget.
type RadioModel struct {
	FrequencyGHz  float64 `json:"frequency_ghz"`
	TxPowerDBm    float64 `json:"tx_power_dbm"`
	GainTxDBi     float64 `json:"gain_tx_dbi"`
	GainRxDBi     float64 `json:"gain_rx_dbi"`
	NoiseFigureDB float64 `json:"noise_figure_db"`

	// MaxRangeM is the maximum communication range in metres used for
	// distance-based topology cutoffs.
	MaxRangeM float64 `json:"max_range_m"`
}

// DefaultRadioModel returns Wi-Fi-ish parameters suitable for a ground
// mesh: 2.4 GHz, 20 dBm transmit power, small omni antennas, 150 m range.
func DefaultRadioModel() RadioModel {
	return RadioModel{
		FrequencyGHz:  2.4,
		TxPowerDBm:    20,
		GainTxDBi:     2,
		GainRxDBi:     2,
		NoiseFigureDB: 6,
		MaxRangeM:     150,
	}
}

// EstimateSNR returns an SNR estimate in dB for a link of the given length
// in metres, using free-space path loss against a fixed thermal noise
// floor. Zero-valued model fields fall back to the defaults so partially
// specified scenarios still produce sensible numbers.
func (r RadioModel) EstimateSNR(distanceM float64) float64 {
	if distanceM < 1 {
		distanceM = 1
	}

	f := r.FrequencyGHz
	if f <= 0 {
		f = 2.4
	}

	// Free-space path loss in dB for d in metres and f in GHz:
	// 20 log10(d) + 20 log10(f) + 32.45.
	fspl := 20*math.Log10(distanceM) + 20*math.Log10(f) + 32.45

	pt := r.TxPowerDBm
	if pt == 0 {
		pt = 20
	}
	gt := r.GainTxDBi
	if gt == 0 {
		gt = 2
	}
	gr := r.GainRxDBi
	if gr == 0 {
		gr = 2
	}

	pr := pt + gt + gr - fspl

	// Thermal noise for a ~20 MHz channel, adjusted by the receiver noise
	// figure.
	noiseFloor := -101.0 + r.NoiseFigureDB

	return pr - noiseFloor
}

// ExpectedLossRate maps an SNR estimate to a nominal packet-loss rate for
// an honest link. The buckets mirror the usual down/poor/fair/good quality
// classification.
func ExpectedLossRate(snr float64) float64 {
	switch {
	case snr < 0:
		return 0.95
	case snr < 5:
		return 0.5
	case snr < 10:
		return 0.2
	case snr < 20:
		return 0.05
	default:
		return 0.01
	}
}
