package mission

import (
	"math"

	"fleet_go/internal/models"
)

// TypeParams são as constantes de sensor de um tipo de frota
type TypeParams struct {
	// Scale converte a unidade bruta do sensor em metros
	Scale float64
	// MaxRange é o sentinela de leitura inválida; leituras >= MaxRange são ignoradas
	MaxRange int
}

// correction converte posição e yaw reportados pela frota para a convenção da missão
type correction func(pos models.Vec2, yaw float64) (models.Vec2, float64)

// O yaw da frota física chega em graus e recebe um viés fixo de π/4.
var corrections = map[models.MissionType]correction{
	models.MissionSimulated: func(pos models.Vec2, yaw float64) (models.Vec2, float64) {
		return pos, yaw
	},
	models.MissionPhysical: func(pos models.Vec2, yaw float64) (models.Vec2, float64) {
		return pos, yaw*math.Pi/180 + math.Pi/4
	},
}

func correct(t models.MissionType, pos models.Vec2, yaw float64) (models.Vec2, float64) {
	if fn, ok := corrections[t]; ok {
		return fn(pos, yaw)
	}
	return pos, yaw
}

// ProjectRanges projeta as 4 leituras cardinais (frente, esquerda, trás,
// direita, a partir de yaw) em pontos absolutos arredondados a 4 casas.
func ProjectRanges(pos models.Vec2, yaw float64, ranges [4]int, p TypeParams) []models.Vec2 {
	points := make([]models.Vec2, 0, len(ranges))
	for i, r := range ranges {
		if r >= p.MaxRange {
			continue
		}
		angle := yaw + float64(i)*math.Pi/2
		dist := float64(r) * p.Scale
		pt := models.Vec2{
			X: pos.X + dist*math.Cos(angle),
			Y: pos.Y + dist*math.Sin(angle),
		}
		points = append(points, pt.Round(4))
	}
	return points
}
