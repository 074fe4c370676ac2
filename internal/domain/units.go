package domain

const (
	MicrogonsPerCentagon int64 = 10_000
	CentagonsPerCoin     int64 = 100
)

// FloorCentagons converts microgons to whole centagons, dropping any fraction.
func FloorCentagons(microgons int64) int64 {
	if microgons <= 0 {
		return 0
	}
	return microgons / MicrogonsPerCentagon
}

// BankersDivide divides a by b rounding half to even. b must be non-zero.
func BankersDivide(a, b int64) int64 {
	negative := (a < 0) != (b < 0)
	ua, ub := abs64(a), abs64(b)
	q := ua / ub
	r := ua % ub
	switch {
	case 2*r > ub:
		q++
	case 2*r == ub && q%2 == 1:
		q++
	}
	if negative {
		return -q
	}
	return q
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
