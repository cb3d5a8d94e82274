package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lessonbook/payments-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret generator for the lesson payments back office")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateSecret(64)
	if err != nil {
		log.Fatalf("Failed to generate JWT secret: %v", err)
	}

	fmt.Print("Admin password (leave empty to skip): ")
	// EOF without a newline still returns what was typed
	password, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	password = strings.TrimSpace(password)

	var passwordHash string
	if password != "" {
		passwordHash, err = utils.HashAdminPassword(password)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	if passwordHash != "" {
		fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", passwordHash)
	}
	fmt.Println("REPORTS_REQUIRE_AUTH=true")
	fmt.Println()
	fmt.Println("Keep these values out of version control.")
	fmt.Println("===========================================")
}
