// Package redis persiste o histórico de missões no Redis, com um cache LRU
// em memória que também serve de armazenamento quando o Redis está ausente.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/brunoga/deep"
	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"fleet_go/internal/config"
	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

// ErrMissionNotFound indica que não há missão com o id pedido
var ErrMissionNotFound = errors.New("missão não encontrada")

// MissionStore grava cada missão como um blob e mantém um índice ordenado
// pelo timestamp de início.
type MissionStore struct {
	client    *redis.Client
	cfg       config.RedisConfig
	prefix    string
	connected atomic.Bool
	cache     *expirable.LRU[string, models.Mission]
}

// NewMissionStore cria o store. Com o Redis desabilitado, apenas o cache é usado.
func NewMissionStore(cfg config.RedisConfig) *MissionStore {
	size := cfg.CacheSize
	if size <= 0 {
		size = 64
	}
	s := &MissionStore{
		cfg:    cfg,
		prefix: cfg.Prefix,
		cache:  expirable.NewLRU[string, models.Mission](size, nil, cfg.CacheTTL),
	}

	if !cfg.Enabled {
		logger.Info("Persistência Redis desabilitada por configuração")
		return s
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return s
}

// Connect testa a conexão com ping
func (s *MissionStore) Connect(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("cliente Redis desabilitado por configuração")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.Ping(ctx).Result(); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	s.connected.Store(true)
	logger.Infof("Conexão estabelecida com Redis em %s:%d", s.cfg.Host, s.cfg.Port)
	return nil
}

// IsConnected indica se a última operação no Redis teve sucesso
func (s *MissionStore) IsConnected() bool {
	return s.client != nil && s.connected.Load()
}

// Close fecha a conexão
func (s *MissionStore) Close() error {
	if s.client == nil {
		return nil
	}
	s.connected.Store(false)
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("erro ao fechar conexão Redis: %w", err)
	}
	logger.Info("Conexão com Redis fechada")
	return nil
}

func (s *MissionStore) missionKey(id string) string {
	return fmt.Sprintf("%s:mission:%s", s.prefix, id)
}

func (s *MissionStore) indexKey() string {
	return fmt.Sprintf("%s:missions", s.prefix)
}

// SaveMission grava (ou substitui) o documento da missão. O documento vai
// para o cache sem cópia; o AsyncWriter entrega sempre a sua própria cópia.
func (s *MissionStore) SaveMission(ctx context.Context, m models.Mission) error {
	if m.ID == "" {
		return errors.New("missão sem id")
	}
	s.cache.Add(m.ID, m)

	if !s.IsConnected() {
		return nil
	}

	blob, err := encodeMission(m)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.missionKey(m.ID), blob, 0)
	pipe.ZAdd(ctx, s.indexKey(), &redis.Z{
		Score:  float64(m.Timestamp),
		Member: m.ID,
	})
	if s.cfg.HistoryLimit > 0 {
		pipe.ZRemRangeByRank(ctx, s.indexKey(), 0, int64(-1*(s.cfg.HistoryLimit+1)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("erro ao gravar missão %s no Redis: %w", m.ID, err)
	}
	return nil
}

// GetMission retorna a missão pelo id, consultando primeiro o cache
func (s *MissionStore) GetMission(ctx context.Context, id string) (models.Mission, error) {
	if m, ok := s.cache.Get(id); ok {
		return deep.MustCopy(m), nil
	}
	if !s.IsConnected() {
		return models.Mission{}, ErrMissionNotFound
	}

	blob, err := s.client.Get(ctx, s.missionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Mission{}, ErrMissionNotFound
	}
	if err != nil {
		return models.Mission{}, fmt.Errorf("erro ao ler missão %s: %w", id, err)
	}

	m, err := decodeMission(blob)
	if err != nil {
		return models.Mission{}, err
	}
	s.cache.Add(id, m)
	return deep.MustCopy(m), nil
}

// ListMissions retorna até limit missões, da mais recente para a mais antiga
func (s *MissionStore) ListMissions(ctx context.Context, limit int64) ([]models.Mission, error) {
	if limit <= 0 {
		limit = 50
	}
	if !s.IsConnected() {
		return s.cachedMissions(int(limit)), nil
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao listar missões: %w", err)
	}

	missions := make([]models.Mission, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMission(ctx, id)
		if err != nil {
			logger.Warnf("Missão %s indexada mas ilegível: %v", id, err)
			continue
		}
		missions = append(missions, m)
	}
	return missions, nil
}

func (s *MissionStore) cachedMissions(limit int) []models.Mission {
	missions := s.cache.Values()
	sort.Slice(missions, func(i, j int) bool { return missions[i].Timestamp > missions[j].Timestamp })
	if len(missions) > limit {
		missions = missions[:limit]
	}
	out := make([]models.Mission, len(missions))
	for i, m := range missions {
		out[i] = deep.MustCopy(m)
	}
	return out
}
