package main

import (
	"innersight/cmd/handlers"
	"innersight/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
