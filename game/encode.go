package game

// Features is the length of the vector produced by Encode.
const Features = BoardSize*BoardSize + 2

// Encode flattens a position into a feature vector from one player's
// perspective. Own men are +1 and own kings +2; the opponent's are negated.
// The last two slots flag whether perspective is to move and whether a chain
// is in progress.
func Encode(p Position, perspective Color) []float64 {
	features := make([]float64, Features)
	for _, piece := range p.Pieces {
		v := 1.0
		if piece.King {
			v = 2.0
		}
		if piece.Color != perspective {
			v = -v
		}
		features[int(piece.X)*BoardSize+int(piece.Y)] = v
	}
	if p.Turn.Color == perspective {
		features[BoardSize*BoardSize] = 1
	}
	if p.Turn.ChainCount > 0 {
		features[BoardSize*BoardSize+1] = 1
	}
	return features
}
