package main

import (
	"fmt"

	"github.com/joho/godotenv"

	"twinvoice/cmd"
	"twinvoice/internal/config"
	"twinvoice/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: failed to load config: %v, using default logger settings\n", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			fmt.Printf("Warning: failed to setup logger: %v\n", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			fmt.Printf("Warning: failed to setup logger: %v\n", err)
		}
	}

	cmd.Execute()
}
