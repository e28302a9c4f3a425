package indicators

// SMA returns the simple moving average over the trailing period values.
// A zero is returned when the window cannot be filled.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}
