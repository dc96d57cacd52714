package searcher

import "checkers/game"

// NodeID indexes a node in its tree's arena. IDs are stable for the
// lifetime of the tree.
type NodeID int

const noParent NodeID = -1

// Node is a vertex of the search tree. Nodes are owned by their Tree and
// only reachable through it; parent links are arena indices.
type Node struct {
	id       NodeID
	parent   NodeID
	children []NodeID // In order of first expansion
	position game.Position
	move     game.Move
	mover    game.Color // Player whose move led here
	prior    float64

	visits    int
	winsBlack int
	winsWhite int
	valueSum  float64 // Black-positive

	terminal bool
	reward   float64 // From the mover's perspective

	legal      []game.Move
	legalKnown bool
}

func (n *Node) ID() NodeID { return n.id }

// Parent returns the parent's id, or false for the root.
func (n *Node) Parent() (NodeID, bool) {
	return n.parent, n.parent != noParent
}

func (n *Node) Children() []NodeID {
	children := make([]NodeID, len(n.children))
	copy(children, n.children)
	return children
}

func (n *Node) Position() game.Position { return n.position }

// Move returns the move that led to this node, or false for the root.
func (n *Node) Move() (game.Move, bool) {
	return n.move, n.parent != noParent
}

func (n *Node) Mover() game.Color { return n.mover }
func (n *Node) Prior() float64    { return n.prior }
func (n *Node) Visits() int       { return n.visits }
func (n *Node) WinsBlack() int    { return n.winsBlack }
func (n *Node) WinsWhite() int    { return n.winsWhite }
func (n *Node) IsTerminal() bool  { return n.terminal }

// Reward is the terminal reward from the perspective of the player who moved
// into this node.
func (n *Node) Reward() float64 { return n.reward }

// Outcome is the terminal reward in the black-positive convention.
func (n *Node) Outcome() float64 {
	return n.reward * n.mover.Sign()
}

// Wins counts the simulations won by the player who moved into this node.
func (n *Node) Wins() int {
	if n.mover == game.Black {
		return n.winsBlack
	}
	return n.winsWhite
}

// MeanValue is the average backed-up value from the mover's perspective.
func (n *Node) MeanValue() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.valueSum * n.mover.Sign() / float64(n.visits)
}

func (n *Node) update(outcome float64) {
	n.visits++
	if outcome > 0 {
		n.winsBlack++
	}
	if outcome < 0 {
		n.winsWhite++
	}
	n.valueSum += outcome
}

func (n *Node) childByMove(move game.Move, nodes []*Node) (NodeID, bool) {
	for _, id := range n.children {
		if nodes[id].move == move {
			return id, true
		}
	}
	return 0, false
}
