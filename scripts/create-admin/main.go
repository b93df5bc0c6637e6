package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mo-amir99/lms-progress-server/internal/bootstrap"
	"github.com/mo-amir99/lms-progress-server/pkg/config"
	"github.com/mo-amir99/lms-progress-server/pkg/database"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	db, err := database.Connect(context.Background(), cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db, appLogger)

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		value, _ := reader.ReadString('\n')
		return strings.TrimSpace(value)
	}

	account := bootstrap.AdminAccount{
		FullName: prompt("Full Name: "),
		Email:    prompt("Email: "),
		Password: prompt("Password (min 8 chars): "),
	}

	if account.FullName == "" || account.Email == "" || len(account.Password) < 8 {
		fmt.Println("❌ Error: Full name, email, and password (min 8 chars) are required")
		os.Exit(1)
	}

	if err := bootstrap.Migrate(db, appLogger); err != nil {
		appLogger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	created, err := bootstrap.EnsureAdmin(db, account, appLogger)
	if err != nil {
		appLogger.Error("Failed to ensure admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if created {
		fmt.Println("\n✅ Admin created successfully!")
	} else {
		fmt.Println("\n✅ Existing user promoted to admin and password reset.")
	}
	fmt.Printf("   Email: %s\n", strings.ToLower(account.Email))
}
