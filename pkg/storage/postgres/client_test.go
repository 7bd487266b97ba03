package postgres_test

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/oceanbase/vira-go/pkg/storage/postgres"
	"github.com/oceanbase/vira-go/pkg/storage/storagetest"
)

// setupPostgresTest connects to the database named by POSTGRES_TEST_HOST.
// Each subtest gets its own table prefix.
func setupPostgresTest(t *testing.T) *postgres.Client {
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("POSTGRES_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("POSTGRES_TEST_PORT"))
	if port == 0 {
		port = 5432
	}

	ids, err := storage.NewSnowflakeGenerator(3)
	require.NoError(t, err)

	prefix := fmt.Sprintf("vira_test_%d_", time.Now().UnixNano())
	client, err := postgres.NewClient(&postgres.Config{
		Host:               host,
		Port:               port,
		User:               os.Getenv("POSTGRES_TEST_USER"),
		Password:           os.Getenv("POSTGRES_TEST_PASSWORD"),
		DBName:             os.Getenv("POSTGRES_TEST_DATABASE"),
		TablePrefix:        prefix,
		EmbeddingModelDims: 3,
	}, ids)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestPostgresClient_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.MemoryStore {
		return setupPostgresTest(t)
	})
}
