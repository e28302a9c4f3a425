package indicators

// AvgVolume returns the mean of the last period values. Same contract as the
// other indicators: zero when there is not enough data.
func AvgVolume(volumes []float64, period int) float64 {
	return SMA(volumes, period)
}
