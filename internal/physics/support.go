package physics

import (
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

const (
	GroundSupportHeight = 0.6
	SupportReach        = 1.5 // horizontal
	SupportMaxGap       = 2.0 // vertical
	RubbleGravityStep   = 0.5
	RubbleFallStep      = 0.016
)

// SupportResult lists the pieces that moved during one pass.
type SupportResult struct {
	Falling []int
	Settled []int
}

// Supported reports whether p rests on the ground or on another live piece
// close enough below it.
func Supported(p *core.RubblePiece, neighbours []*core.RubblePiece) bool {
	if p.Position[1] <= GroundSupportHeight {
		return true
	}
	for _, o := range neighbours {
		if o == p || o.Destroyed {
			continue
		}
		gap := p.Position[1] - o.Position[1]
		if gap > 0 && gap < SupportMaxGap && core.HorizontalDistance(p.Position, o.Position) < SupportReach {
			return true
		}
	}
	return false
}

// SolveSupport runs one support pass over every live, ungrounded piece in id
// order. Pieces update in place, so a piece moved earlier in the pass is seen
// at its new height by later ones. Grounding is permanent; grounded pieces are
// never evaluated again. Loss of support propagates upwards one pass at a time.
func SolveSupport(w *world.World) SupportResult {
	var res SupportResult
	for _, p := range w.Rubble {
		if p.Destroyed || p.Grounded {
			continue
		}
		neighbours := w.RubbleNear(p.Position[0], p.Position[2], SupportReach)
		if !Supported(p, neighbours) && p.Position[1] > world.SettleHeight {
			p.FallingVelocity -= RubbleGravityStep
			p.Position[1] += p.FallingVelocity * RubbleFallStep
			res.Falling = append(res.Falling, p.ID)
			if p.Position[1] <= world.SettleHeight {
				p.Position[1] = world.SettleHeight
				p.FallingVelocity = 0
				p.Grounded = true
				res.Settled = append(res.Settled, p.ID)
			}
		} else if p.Position[1] <= world.SettleHeight {
			p.Grounded = true
		}
	}
	return res
}
