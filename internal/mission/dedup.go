package mission

import (
	"math"

	"fleet_go/internal/models"
)

// kdNode é um nó da árvore 2-D; o eixo de corte alterna entre X e Y por nível
type kdNode struct {
	point       models.Vec2
	left, right *kdNode
}

func axisValue(p models.Vec2, depth int) float64 {
	if depth%2 == 0 {
		return p.X
	}
	return p.Y
}

// SpatialDedup rejeita pontos que já têm um vizinho dentro de minSeparation.
// Não é seguro para uso concorrente; pertence a uma única missão.
type SpatialDedup struct {
	root          *kdNode
	minSeparation float64
}

// NewSpatialDedup cria um índice vazio
func NewSpatialDedup(minSeparation float64) *SpatialDedup {
	return &SpatialDedup{minSeparation: minSeparation}
}

// Accept insere p se o vizinho mais próximo estiver a mais de minSeparation.
// Retorna false para uma reobservação de ponto já conhecido.
func (s *SpatialDedup) Accept(p models.Vec2) bool {
	if s.root != nil {
		if _, d := s.Nearest(p); d <= s.minSeparation {
			return false
		}
	}
	s.insert(p)
	return true
}

func (s *SpatialDedup) insert(p models.Vec2) {
	node := &kdNode{point: p}
	if s.root == nil {
		s.root = node
		return
	}
	cur := s.root
	for depth := 0; ; depth++ {
		if axisValue(p, depth) < axisValue(cur.point, depth) {
			if cur.left == nil {
				cur.left = node
				return
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = node
				return
			}
			cur = cur.right
		}
	}
}

// Nearest retorna o ponto indexado mais próximo de p e sua distância.
// Com o índice vazio a distância é +Inf.
func (s *SpatialDedup) Nearest(p models.Vec2) (models.Vec2, float64) {
	best := models.Vec2{}
	bestDist := math.Inf(1)
	var search func(n *kdNode, depth int)
	search = func(n *kdNode, depth int) {
		if n == nil {
			return
		}
		if d := n.point.Dist(p); d < bestDist {
			best, bestDist = n.point, d
		}
		delta := axisValue(p, depth) - axisValue(n.point, depth)
		near, far := n.left, n.right
		if delta >= 0 {
			near, far = n.right, n.left
		}
		search(near, depth+1)
		if math.Abs(delta) < bestDist {
			search(far, depth+1)
		}
	}
	search(s.root, 0)
	return best, bestDist
}
