package detector

import "math"

// sma returns the simple moving average of the trailing period values.
// ok is false when there are fewer values than the period.
func sma(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// stddevPop returns the population standard deviation.
func stddevPop(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// pctReturns returns day-over-day percentage returns. A zero close is
// skipped rather than producing an infinite return.
func pctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	return out
}

// linearRegression fits y = slope*x + intercept over x = 0..n-1 and
// returns the slope and coefficient of determination. ok is false when
// the fit is undefined (fewer than 2 points or zero x-variance).
func linearRegression(values []float64) (slope, r2 float64, ok bool) {
	n := len(values)
	if n < 2 {
		return 0, 0, false
	}
	xMean := float64(n-1) / 2.0
	var yMean float64
	for _, y := range values {
		yMean += y
	}
	yMean /= float64(n)

	var ssxx, ssxy float64
	for i, y := range values {
		dx := float64(i) - xMean
		ssxx += dx * dx
		ssxy += dx * (y - yMean)
	}
	if ssxx == 0 {
		return 0, 0, false
	}
	slope = ssxy / ssxx
	intercept := yMean - slope*xMean

	var ssTot, ssRes float64
	for i, y := range values {
		yHat := slope*float64(i) + intercept
		ssTot += (y - yMean) * (y - yMean)
		ssRes += (y - yHat) * (y - yHat)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return slope, 1, true
		}
		return slope, 0, true
	}
	return slope, 1 - ssRes/ssTot, true
}
