package mission

import "fleet_go/internal/models"

// AssembleShapes encadeia os pontos em polilinhas fechadas. Partindo de uma
// semente, absorve recursivamente o ponto livre mais próximo do último ponto
// adicionado enquanto ele estiver a até maxLink; cada forma é fechada
// repetindo seu primeiro ponto.
func AssembleShapes(points []models.Vec2, maxLink float64) [][]models.Vec2 {
	pool := make([]models.Vec2, len(points))
	copy(pool, points)

	var shapes [][]models.Vec2
	for len(pool) > 0 {
		seed := pool[0]
		pool = pool[1:]
		shape := chain([]models.Vec2{seed}, &pool, maxLink)
		shapes = append(shapes, append(shape, shape[0]))
	}
	return shapes
}

// chain absorve o vizinho livre mais próximo do último ponto de shape
func chain(shape []models.Vec2, pool *[]models.Vec2, maxLink float64) []models.Vec2 {
	last := shape[len(shape)-1]

	best, bestDist := -1, 0.0
	for i, p := range *pool {
		d := p.Dist(last)
		if d <= maxLink && (best < 0 || d < bestDist) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return shape
	}

	next := (*pool)[best]
	*pool = append((*pool)[:best], (*pool)[best+1:]...)
	return chain(append(shape, next), pool, maxLink)
}
