// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

//go:build integration

// Package integration provides end-to-end tests against a real
// PostgreSQL instance. Point DATABASE_URL at a scratch database before
// running; the suite migrates it and truncates the users table between
// specs.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/globalcart/identity/internal/auth"
	authpg "github.com/globalcart/identity/internal/auth/postgres"
	"github.com/globalcart/identity/internal/store"
)

func TestIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration suite")
	}
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identity Integration Suite")
}

// testEnv holds all resources needed for integration tests.
type testEnv struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	users *authpg.UserRepository
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil && env.pool != nil {
		env.pool.Close()
	}
})

var _ = BeforeEach(func() {
	_, err := env.pool.Exec(env.ctx, "TRUNCATE users")
	Expect(err).NotTo(HaveOccurred())
})

func setupTestEnv() (*testEnv, error) {
	ctx := context.Background()
	databaseURL := os.Getenv("DATABASE_URL")

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, err
	}

	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	return &testEnv{
		ctx:   ctx,
		pool:  pool,
		users: authpg.NewUserRepository(pool),
	}, nil
}

func mustCreateUser(email string) *auth.User {
	GinkgoHelper()
	user, err := auth.NewUser("Test User", email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g")
	Expect(err).NotTo(HaveOccurred())
	Expect(env.users.Create(env.ctx, user)).To(Succeed())
	return user
}

var _ = Describe("UserRepository", func() {
	Describe("Create", func() {
		It("stores a user retrievable by ID and email", func() {
			user := mustCreateUser("ada@example.com")

			byID, err := env.users.GetByID(env.ctx, user.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal("ada@example.com"))
			Expect(byID.Role).To(Equal(auth.RoleUser))
			Expect(byID.PasswordHash).To(BeEmpty())

			byEmail, err := env.users.GetByEmail(env.ctx, "ada@example.com", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(user.ID))
			Expect(byEmail.PasswordHash).To(Equal(user.PasswordHash))
		})

		It("rejects a duplicate email", func() {
			mustCreateUser("ada@example.com")

			dup, err := auth.NewUser("Other User", "ada@example.com", "hash-placeholder")
			Expect(err).NotTo(HaveOccurred())
			Expect(env.users.Create(env.ctx, dup)).To(MatchError(auth.ErrEmailTaken))
		})
	})

	Describe("GetByID", func() {
		It("returns ErrNotFound for an unknown ID", func() {
			_, err := env.users.GetByID(env.ctx, ulid.Make(), false)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("Update", func() {
		It("persists profile fields without touching the role", func() {
			user := mustCreateUser("ada@example.com")
			avatar := "https://example.com/a.png"

			user.Name = "Ada King"
			user.Email = "countess@example.com"
			user.AvatarURL = &avatar
			user.UpdatedAt = time.Now()
			Expect(env.users.Update(env.ctx, user)).To(Succeed())

			got, err := env.users.GetByID(env.ctx, user.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Ada King"))
			Expect(got.Email).To(Equal("countess@example.com"))
			Expect(got.AvatarURL).To(HaveValue(Equal(avatar)))
			Expect(got.Role).To(Equal(auth.RoleUser))
		})

		It("rejects an email already registered to another user", func() {
			mustCreateUser("ada@example.com")
			other := mustCreateUser("grace@example.com")

			other.Email = "ada@example.com"
			Expect(env.users.Update(env.ctx, other)).To(MatchError(auth.ErrEmailTaken))
		})
	})

	Describe("UpdatePassword", func() {
		It("replaces only the password hash", func() {
			user := mustCreateUser("ada@example.com")

			Expect(env.users.UpdatePassword(env.ctx, user.ID, "new-hash")).To(Succeed())

			got, err := env.users.GetByEmail(env.ctx, "ada@example.com", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))
			Expect(got.Name).To(Equal(user.Name))
		})
	})

	Describe("UpdateRole", func() {
		It("promotes a user to admin", func() {
			user := mustCreateUser("ada@example.com")

			Expect(env.users.UpdateRole(env.ctx, user.ID, auth.RoleAdmin)).To(Succeed())

			got, err := env.users.GetByID(env.ctx, user.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Role).To(Equal(auth.RoleAdmin))
		})
	})

	Describe("List", func() {
		It("returns all users newest first without secrets", func() {
			first := mustCreateUser("first@example.com")
			second := mustCreateUser("second@example.com")

			users, err := env.users.List(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].ID).To(Equal(second.ID))
			Expect(users[1].ID).To(Equal(first.ID))
			for _, u := range users {
				Expect(u.PasswordHash).To(BeEmpty())
				Expect(u.ResetTokenHash).To(BeNil())
			}
		})
	})

	Describe("Delete", func() {
		It("removes the user", func() {
			user := mustCreateUser("ada@example.com")

			Expect(env.users.Delete(env.ctx, user.ID)).To(Succeed())
			_, err := env.users.GetByID(env.ctx, user.ID, false)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("returns ErrNotFound for an unknown ID", func() {
			Expect(env.users.Delete(env.ctx, ulid.Make())).To(MatchError(auth.ErrNotFound))
		})
	})
})

var _ = Describe("Reset tokens", func() {
	It("round-trips a token through issue, lookup, and consume", func() {
		user := mustCreateUser("ada@example.com")

		token, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		expiresAt := time.Now().Add(30 * time.Minute)
		Expect(env.users.SetResetToken(env.ctx, user.ID, hash, expiresAt)).To(Succeed())

		found, err := env.users.GetByResetTokenHash(env.ctx, auth.HashResetToken(token), time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(user.ID))

		Expect(env.users.ResetPassword(env.ctx, user.ID, "fresh-hash")).To(Succeed())

		// Consuming the token clears it; a second lookup must miss.
		_, err = env.users.GetByResetTokenHash(env.ctx, auth.HashResetToken(token), time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))

		got, err := env.users.GetByEmail(env.ctx, "ada@example.com", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("fresh-hash"))
		Expect(got.ResetTokenHash).To(BeNil())
		Expect(got.ResetTokenExpiresAt).To(BeNil())
	})

	It("never returns a user for an expired token", func() {
		user := mustCreateUser("ada@example.com")

		token, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.users.SetResetToken(env.ctx, user.ID, hash, time.Now().Add(-time.Minute))).To(Succeed())

		_, err = env.users.GetByResetTokenHash(env.ctx, auth.HashResetToken(token), time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("replaces an outstanding token on reissue", func() {
		user := mustCreateUser("ada@example.com")

		oldToken, oldHash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.users.SetResetToken(env.ctx, user.ID, oldHash, time.Now().Add(30*time.Minute))).To(Succeed())

		newToken, newHash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.users.SetResetToken(env.ctx, user.ID, newHash, time.Now().Add(30*time.Minute))).To(Succeed())

		_, err = env.users.GetByResetTokenHash(env.ctx, auth.HashResetToken(oldToken), time.Now())
		Expect(err).To(MatchError(auth.ErrNotFound))

		found, err := env.users.GetByResetTokenHash(env.ctx, auth.HashResetToken(newToken), time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(user.ID))
	})
})

var _ = Describe("Account flows", func() {
	var (
		svc    *auth.Service
		tokens *auth.SessionTokens
	)

	BeforeEach(func() {
		var err error
		tokens, err = auth.NewSessionTokens([]byte("integration-secret"), time.Hour)
		Expect(err).NotTo(HaveOccurred())
		svc, err = auth.NewService(env.users, tokens, auth.NewArgon2idHasher())
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers and logs in against the real store", func() {
		user, session, err := svc.Register(env.ctx, "Ada Lovelace", "Ada@Example.com", "correct horse", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Email).To(Equal("ada@example.com"))
		Expect(user.PasswordHash).To(BeEmpty())
		Expect(session.Token).NotTo(BeEmpty())

		loggedIn, _, err := svc.Login(env.ctx, "ada@example.com", "correct horse")
		Expect(err).NotTo(HaveOccurred())
		Expect(loggedIn.ID).To(Equal(user.ID))

		_, _, err = svc.Login(env.ctx, "ada@example.com", "wrong password")
		Expect(err).To(MatchError(ContainSubstring("invalid email or password")))
	})

	It("resolves a session token back to its user", func() {
		user, session, err := svc.Register(env.ctx, "Ada Lovelace", "ada@example.com", "correct horse", nil)
		Expect(err).NotTo(HaveOccurred())

		identity, err := svc.Authenticate(env.ctx, session.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(identity.ID).To(Equal(user.ID))
	})
})

var _ = Describe("Migrator", func() {
	It("reports a clean version after Up", func() {
		migrator, err := store.NewMigrator(os.Getenv("DATABASE_URL"))
		Expect(err).NotTo(HaveOccurred())
		defer func() {
			Expect(migrator.Close()).To(Succeed())
		}()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(BeNumerically(">=", 1))
	})
})

var _ = Describe("Pool", func() {
	It("connects and answers queries", func() {
		pool, err := store.NewPool(env.ctx, os.Getenv("DATABASE_URL"))
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var one int
		Expect(pool.QueryRow(env.ctx, "SELECT 1").Scan(&one)).To(Succeed())
		Expect(one).To(Equal(1))
	})
})
