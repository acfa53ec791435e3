// Command seed provisions a development database with one account per role so
// the full review chain can be exercised from a fresh checkout.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/internal/repository"
	"github.com/noah-isme/gms-api/pkg/config"
	"github.com/noah-isme/gms-api/pkg/database"
)

type account struct {
	Email      string
	FullName   string
	Role       models.UserRole
	Department string
	Faculty    string
	StudentID  string
}

func main() {
	var (
		password string
		timeout  time.Duration
	)
	flag.StringVar(&password, "password", "changeme", "password assigned to every seeded account")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "database operation timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	accounts := []account{
		{Email: "student@university.edu", FullName: "Ayşe Yılmaz", Role: models.RoleStudent,
			Department: "Computer Engineering", Faculty: "Engineering", StudentID: "20180001"},
		{Email: "advisor@university.edu", FullName: "Dr. Mehmet Kaya", Role: models.RoleAdvisor,
			Department: "Computer Engineering", Faculty: "Engineering"},
		{Email: "secretary@university.edu", FullName: "Zeynep Demir", Role: models.RoleSecretary,
			Department: "Computer Engineering", Faculty: "Engineering"},
		{Email: "dean@university.edu", FullName: "Prof. Ali Öztürk", Role: models.RoleDean,
			Faculty: "Engineering"},
		{Email: "affairs@university.edu", FullName: "Fatma Şahin", Role: models.RoleStudentAffairs},
	}

	users := repository.NewUserRepository(db)
	created := 0
	for _, acc := range accounts {
		if _, err := users.FindByEmail(ctx, acc.Email); err == nil {
			fmt.Printf("skip %-30s already exists\n", acc.Email)
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Fatalf("lookup %s: %v", acc.Email, err)
		}

		user := &models.User{
			Email:        acc.Email,
			PasswordHash: string(hash),
			FullName:     acc.FullName,
			Role:         acc.Role,
			Department:   acc.Department,
			Faculty:      acc.Faculty,
			Active:       true,
		}
		if acc.StudentID != "" {
			user.StudentID = &acc.StudentID
		}
		if err := users.Create(ctx, user); err != nil {
			log.Fatalf("create %s: %v", acc.Email, err)
		}
		fmt.Printf("seed %-30s role=%s\n", acc.Email, acc.Role)
		created++
	}
	fmt.Printf("done: %d account(s) created\n", created)
}
