package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"ojtportal/internal/auth"
	"ojtportal/internal/config"
	"ojtportal/internal/database"
)

// Bootstraps the first administrator account with a random one-time
// password printed to stdout.
func main() {
	var (
		email   = flag.String("email", "", "initial admin email (required)")
		name    = flag.String("name", "Administrator", "display name")
		dbHost  = flag.String("db-host", "", "database host (defaults to DATABASE_HOST)")
		dbPort  = flag.Int("db-port", 0, "database port (defaults to DATABASE_PORT)")
		dbName  = flag.String("db-name", "", "database name (defaults to POSTGRES_DB)")
		dbUser  = flag.String("db-user", "", "database user (defaults to POSTGRES_USER)")
		dbPass  = flag.String("db-password", "", "database password (defaults to POSTGRES_PASSWORD)")
		sslMode = flag.String("db-sslmode", "", "database sslmode (defaults to DATABASE_SSLMODE)")
	)
	flag.Parse()

	addr := strings.TrimSpace(*email)
	if addr == "" {
		log.Fatal("missing required flag: --email")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		log.Fatalf("invalid email %q: %v", addr, err)
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var existing database.User
	switch err := db.Where("email = ?", addr).First(&existing).Error; {
	case err == nil:
		log.Fatalf("account %q already exists", addr)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query account: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin := database.User{
		Name:         strings.TrimSpace(*name),
		Email:        addr,
		PasswordHash: hashed,
		Role:         database.RoleAdmin,
		Status:       database.UserStatusActive,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatalf("create admin account: %v", err)
	}

	fmt.Printf("created initial admin account:\n")
	fmt.Printf("email: %s\n", addr)
	fmt.Printf("one-time password: %s\n", password)
	fmt.Printf("log in and change the password immediately; it is shown only once.\n")
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
