package relay

import (
	"os"
	"testing"

	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.Config{Level: "silent"})
	os.Exit(m.Run())
}
