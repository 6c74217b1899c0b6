package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"fleet_go/internal/models"
)

// droneTypes são mensagens que só fazem sentido no sentido frota -> painel
var droneTypes = map[models.MessageType]bool{
	models.TypePulse:          true,
	models.TypeDisconnect:     true,
	models.TypeMission:        true,
	models.TypeMissionPulse:   true,
	models.TypeLoadProjectLog: true,
}

// SerializeMessage serializa uma mensagem para JSON
func SerializeMessage(msg models.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// ParseCommand analisa um comando recebido do painel. Tipos desconhecidos
// seguem para as frotas sem alteração.
func ParseCommand(data []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("formato de mensagem inválido: %w", err)
	}
	if msg.Type == "" {
		return msg, errors.New("mensagem sem tipo")
	}
	if droneTypes[msg.Type] {
		return msg, fmt.Errorf("mensagem %q não é um comando", msg.Type)
	}
	return msg, nil
}
