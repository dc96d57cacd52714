package searcher

import "math"

// ScoreFunc rates a child during selection. Higher is better.
type ScoreFunc func(parent, child *Node) (float64, error)

// uct = q/(n+1) + c*sqrt(ln(N+1)/(n+1)). Unvisited children score finite.
func uct(q float64, n, parentN int, c float64) float64 {
	return q/float64(n+1) + exploration(n, parentN, c)
}

// guidedUCT = v + c*sqrt(ln(N+1)/(n+1))*prior
func guidedUCT(v, prior float64, n, parentN int, c float64) float64 {
	return v + exploration(n, parentN, c)*prior
}

func exploration(n, parentN int, c float64) float64 {
	return c * math.Sqrt(math.Log(float64(parentN+1))/float64(n+1))
}
