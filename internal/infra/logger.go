// README: Structured logger construction.
package infra

import (
	"os"

	"go.uber.org/zap"
)

func NewLogger() (*zap.Logger, error) {
	if os.Getenv("HMARKET_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
