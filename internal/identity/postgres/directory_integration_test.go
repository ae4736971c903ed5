// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/identity/credential"
	"github.com/oryen/oryen/internal/identity/postgres"
	"github.com/oryen/oryen/internal/logging"
)

func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("oryen_test"),
		tcpostgres.WithUsername("oryen"),
		tcpostgres.WithPassword("oryen"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	return dsn, func() { _ = container.Terminate(ctx) }, nil
}

var _ = Describe("Directory", Ordered, func() {
	var (
		ctx       context.Context
		dir       *postgres.Directory
		terminate func()
	)

	BeforeAll(func() {
		ctx = context.Background()
		dsn, stop, err := startPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())
		terminate = stop

		m, err := postgres.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Up()).To(Succeed())
		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(Equal(uint(2)))
		Expect(m.Close()).To(Succeed())

		dir, err = postgres.Open(ctx, dsn,
			postgres.WithParams(credential.FastParams),
			postgres.WithLogger(logging.Discard()),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if dir != nil {
			dir.Close()
		}
		if terminate != nil {
			terminate()
		}
	})

	It("registers an organization and signs it back in", func() {
		sess, err := dir.CreateAccount(ctx, "Ops@Acme.com", "Acme#2026")
		Expect(err).NotTo(HaveOccurred())

		rec := identity.Record{
			Kind:     identity.Organization,
			Document: "11222333000181",
			Email:    "ops@acme.com",
			Organization: &identity.OrganizationProfile{
				LegalName: "Acme Comercio Ltda",
				Size:      identity.SizeMedium,
			},
		}
		Expect(dir.PersistIdentity(ctx, sess.UserID, rec)).To(Succeed())
		Expect(dir.PersistIdentity(ctx, sess.UserID, rec)).To(Succeed())

		exists, err := dir.DocumentExists(ctx, identity.Organization, "11.222.333/0001-81")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		email, err := dir.ResolveEmailForDocument(ctx, identity.Organization, "11222333000181")
		Expect(err).NotTo(HaveOccurred())
		Expect(email).To(Equal("ops@acme.com"))

		stored, err := dir.Record(ctx, sess.UserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Organization.Size).To(Equal(identity.SizeMedium))

		Expect(dir.SignOut(ctx)).To(Succeed())
		_, err = dir.Validate(ctx, sess.Token)
		Expect(err).To(MatchError(identity.ErrNotFound))

		again, err := dir.SignIn(ctx, "ops@acme.com", "Acme#2026")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.UserID).To(Equal(sess.UserID))

		userID, err := dir.Validate(ctx, again.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(userID).To(Equal(sess.UserID))
	})

	It("rejects a duplicate email", func() {
		_, err := dir.CreateAccount(ctx, "dup@example.com", "Abcd123!")
		Expect(err).NotTo(HaveOccurred())
		_, err = dir.CreateAccount(ctx, "DUP@example.com", "Abcd123!")
		Expect(err).To(MatchError(identity.ErrEmailAlreadyInUse))
	})

	It("locks an account after repeated failures", func() {
		_, err := dir.CreateAccount(ctx, "lock@example.com", "Abcd123!")
		Expect(err).NotTo(HaveOccurred())
		for range credential.LockoutThreshold {
			_, err = dir.SignIn(ctx, "lock@example.com", "wrong-pass")
			Expect(err).To(MatchError(identity.ErrInvalidCredentials))
		}
		_, err = dir.SignIn(ctx, "lock@example.com", "Abcd123!")
		Expect(err).To(MatchError(identity.ErrInvalidCredentials))
	})

	It("counts concurrent failures without losing any", func() {
		_, err := dir.CreateAccount(ctx, "race@example.com", "Abcd123!")
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		for range credential.LockoutThreshold {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := dir.SignIn(ctx, "race@example.com", "wrong-pass")
				Expect(err).To(MatchError(identity.ErrInvalidCredentials))
			}()
		}
		wg.Wait()

		_, err = dir.SignIn(ctx, "race@example.com", "Abcd123!")
		Expect(err).To(MatchError(identity.ErrInvalidCredentials))
	})

	It("reports a document held by another account", func() {
		first, err := dir.CreateAccount(ctx, "holder@example.com", "Abcd123!")
		Expect(err).NotTo(HaveOccurred())
		second, err := dir.CreateAccount(ctx, "late@example.com", "Abcd123!")
		Expect(err).NotTo(HaveOccurred())

		record := func(email string) identity.Record {
			return identity.Record{
				Kind:         identity.Organization,
				Document:     "11444777000161",
				Email:        email,
				Organization: &identity.OrganizationProfile{LegalName: "Nova Comercio Ltda", Size: identity.SizeMicro},
			}
		}
		Expect(dir.PersistIdentity(ctx, first.UserID, record("holder@example.com"))).To(Succeed())
		err = dir.PersistIdentity(ctx, second.UserID, record("late@example.com"))
		Expect(err).To(MatchError(identity.ErrDocumentInUse))
		Expect(identity.Classify(err)).To(Equal(identity.ConflictError))
	})

	It("drives a full registration through the flow engine", func() {
		m, err := flow.NewRegistration(dir, identity.Individual, "98765432100",
			flow.WithLogger(logging.Discard()))
		Expect(err).NotTo(HaveOccurred())

		steps := []struct {
			field flow.Field
			value string
		}{
			{flow.FieldName, "Maria Silva"},
			{flow.FieldEmail, "maria@example.com"},
			{flow.FieldPhone, "11987654321"},
			{flow.FieldBirthDate, "1990-05-20"},
			{flow.FieldPassword, "Abcd123!"},
			{flow.FieldConfirmPassword, "Abcd123!"},
		}
		var last flow.Transition
		for _, s := range steps {
			Expect(m.Update(s.field, s.value)).To(Succeed())
			last = m.Next(ctx)
		}
		Expect(last).To(Equal(flow.Completed))

		exists, err := dir.DocumentExists(ctx, identity.Individual, "98765432100")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})
})
