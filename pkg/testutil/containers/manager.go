//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager starts each container once per test binary and hands the same
// instance to every suite. Ryuk removes the containers when the process exits.
type Manager struct {
	postgresOnce sync.Once
	postgres     *PostgresContainer

	redisOnce sync.Once
	redis     *RedisContainer

	redpandaOnce sync.Once
	redpanda     *RedpandaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.postgresOnce.Do(func() {
		m.postgres = NewPostgresContainer(t)
	})
	if m.postgres == nil {
		t.Fatal("postgres container failed to start earlier")
	}
	return m.postgres
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis = NewRedisContainer(t)
	})
	if m.redis == nil {
		t.Fatal("redis container failed to start earlier")
	}
	return m.redis
}

func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.redpandaOnce.Do(func() {
		m.redpanda = NewRedpandaContainer(t)
	})
	if m.redpanda == nil {
		t.Fatal("redpanda container failed to start earlier")
	}
	return m.redpanda
}
