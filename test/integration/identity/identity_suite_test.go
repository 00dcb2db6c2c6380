// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

//go:build integration

package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/accountd/accountd/internal/identity"
	idpostgres "github.com/accountd/accountd/internal/identity/postgres"
	"github.com/accountd/accountd/internal/store"
)

func TestIdentity(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identity Integration Suite")
}

// testEnv holds the infrastructure shared by every spec in the suite.
type testEnv struct {
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool

	accounts   *idpostgres.AccountRepository
	sessions   identity.SessionRepository
	transactor identity.Transactor
	svc        *identity.Service
	mailer     *recordingMailer
}

var env *testEnv

var _ = BeforeSuite(func() {
	env = &testEnv{ctx: context.Background()}

	container, err := tcpostgres.Run(env.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("accountd_test"),
		tcpostgres.WithUsername("accountd"),
		tcpostgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())
	env.container = container

	connStr, err := container.ConnectionString(env.ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err := pgxpool.New(env.ctx, connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(pool.Ping(env.ctx)).To(Succeed())
	env.pool = pool

	env.accounts = idpostgres.NewAccountRepository(pool)
	env.sessions = idpostgres.NewSessionRepository(pool)
	env.transactor = idpostgres.NewTransactor(pool)
	env.mailer = &recordingMailer{}

	sessions, err := identity.NewSessionManager(env.sessions, time.Hour, 0)
	Expect(err).NotTo(HaveOccurred())

	signer, err := identity.NewTokenSigner([]byte("integration-test-secret"), time.Hour, "accountd")
	Expect(err).NotTo(HaveOccurred())

	svc, err := identity.NewService(
		env.accounts,
		sessions,
		env.transactor,
		identity.NewBcryptHasher(4),
		signer,
		env.mailer,
		identity.ServiceOptions{
			Policy:               identity.DefaultPasswordPolicy(),
			RequireVerifiedLogin: true,
			VerificationBaseURL:  "https://accounts.example.com",
		},
	)
	Expect(err).NotTo(HaveOccurred())
	env.svc = svc
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	if env.pool != nil {
		env.pool.Close()
	}
	if env.container != nil {
		Expect(env.container.Terminate(env.ctx)).To(Succeed())
	}
})

// resetDatabase wipes all identity state between specs.
func (e *testEnv) resetDatabase() {
	_, err := e.pool.Exec(e.ctx, `TRUNCATE user_account CASCADE`)
	Expect(err).NotTo(HaveOccurred())
	e.mailer.reset()
}

// recordingMailer captures verification links instead of sending mail.
type recordingMailer struct {
	mu    sync.Mutex
	sends []sentMail
}

type sentMail struct {
	to   string
	link string
}

func (m *recordingMailer) SendVerification(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMail{to: to, link: link})
	return nil
}

func (m *recordingMailer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = nil
}

func (m *recordingMailer) lastSend() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		return sentMail{}, false
	}
	return m.sends[len(m.sends)-1], true
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}
