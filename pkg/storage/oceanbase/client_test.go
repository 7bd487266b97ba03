package oceanbase_test

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/oceanbase/vira-go/pkg/storage/oceanbase"
	"github.com/oceanbase/vira-go/pkg/storage/storagetest"
)

func setupOceanBaseTest(t *testing.T) *oceanbase.Client {
	host := os.Getenv("OCEANBASE_TEST_HOST")
	if host == "" {
		t.Skip("OCEANBASE_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("OCEANBASE_TEST_PORT"))
	if port == 0 {
		port = 2881
	}

	ids, err := storage.NewSnowflakeGenerator(4)
	require.NoError(t, err)

	client, err := oceanbase.NewClient(&oceanbase.Config{
		Host:               host,
		Port:               port,
		User:               os.Getenv("OCEANBASE_TEST_USER"),
		Password:           os.Getenv("OCEANBASE_TEST_PASSWORD"),
		DBName:             os.Getenv("OCEANBASE_TEST_DATABASE"),
		TablePrefix:        fmt.Sprintf("vira_test_%d_", time.Now().UnixNano()),
		EmbeddingModelDims: 3,
	}, ids)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestOceanBaseClient_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.MemoryStore {
		return setupOceanBaseTest(t)
	})
}
