package logger

import (
	"log"

	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger

// Init builds the process-wide logger. debug switches to the development
// encoder with DEBUG level enabled.
func Init(debug bool) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	sugar = l.Sugar()
}

// S returns the sugared logger, falling back to a no-op-ish default so tests
// can call package code without Init.
func S() *zap.SugaredLogger {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return sugar
}

func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
