// Command irisauth-useradd creates a principal that can log in to irisauthd.
//
// The password is read from the IRISAUTH_PASSWORD environment variable, or
// from the first line of standard input when that is unset:
//
//	echo 's3cret' | irisauth-useradd -email alice@example.com -username alice
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AvanindraBose/irisauth/password"
	"github.com/AvanindraBose/irisauth/session"
	"github.com/AvanindraBose/irisauth/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		dsn      = flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
		email    = flag.String("email", "", "login email")
		username = flag.String("username", "", "display name")
		cost     = flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
		inactive = flag.Bool("inactive", false, "create the principal with login disabled")
		migrate  = flag.Bool("migrate", true, "apply schema migrations first")
	)
	flag.Parse()

	if *dsn == "" || *email == "" || *username == "" {
		fmt.Fprintln(os.Stderr, "database-url, email and username are required")
		flag.Usage()
		os.Exit(2)
	}

	pw, err := readPassword(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := create(ctx, *dsn, *migrate, *cost, &users.User{
		Username: *username,
		Email:    *email,
		Active:   !*inactive,
	}, pw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(id)
}

func readPassword(stdin io.Reader) (string, error) {
	if pw := os.Getenv("IRISAUTH_PASSWORD"); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required on stdin or in IRISAUTH_PASSWORD")
	}
	return line, nil
}

func create(ctx context.Context, dsn string, migrate bool, cost int, u *users.User, pw string) (string, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return "", fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := session.Migrate(ctx, db); err != nil {
			return "", fmt.Errorf("migrate: %w", err)
		}
	}

	hasher, err := password.NewHasher(password.Config{Cost: cost, MaxConcurrent: 1})
	if err != nil {
		return "", err
	}
	hash, err := hasher.Hash(ctx, pw)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash

	created, err := users.NewPostgresRepository(db, 0).Create(ctx, u)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}
