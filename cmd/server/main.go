package main

import (
	_ "github.com/atomport/solver/docs" // swagger docs
	"github.com/atomport/solver/internal/server"
)

// @title Atomport Solver API
// @version 1.0
// @description Cross-chain atomic swap solver control surface.
// @BasePath /api/v1
func main() {
	server.Init()
}
