// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

//go:build integration

package identity_test

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/identity"
)

// verificationToken pulls the signed token out of the last mailed link.
func verificationToken() string {
	sent, ok := env.mailer.lastSend()
	Expect(ok).To(BeTrue(), "no verification mail was sent")

	link, err := url.Parse(sent.link)
	Expect(err).NotTo(HaveOccurred())
	token := link.Query().Get("token")
	Expect(token).NotTo(BeEmpty())
	return token
}

func expectCode(err error, code string) {
	GinkgoHelper()
	Expect(err).To(HaveOccurred())
	oopsErr, ok := oops.AsOops(err)
	Expect(ok).To(BeTrue(), "error %v carries no code", err)
	Expect(oopsErr.Code()).To(Equal(code))
}

var _ = Describe("Local account lifecycle", func() {
	const (
		email    = "alice@example.com"
		password = "Correct-horse-7"
	)

	BeforeEach(func() {
		env.resetDatabase()
	})

	It("registers, verifies, logs in, and logs out", func() {
		By("registering a new account")
		Expect(env.svc.RegisterLocal(env.ctx, email, password)).To(Succeed())
		Expect(env.mailer.count()).To(Equal(1))

		By("blocking login before the email is verified")
		_, err := env.svc.LoginLocal(env.ctx, email, password)
		expectCode(err, identity.CodeEmailNotVerified)

		By("verifying the email and issuing the first session")
		sessionToken, err := env.svc.VerifyEmail(env.ctx, verificationToken())
		Expect(err).NotTo(HaveOccurred())
		Expect(sessionToken).NotTo(BeEmpty())

		By("resolving the session to a verified account view")
		view, err := env.svc.GetSessionUser(env.ctx, sessionToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Email).To(Equal(email))
		Expect(view.Provider).To(Equal(identity.ProviderLocal))
		Expect(view.IsVerified).To(BeTrue())

		By("logging in with the password after verification")
		loginToken, err := env.svc.LoginLocal(env.ctx, email, password)
		Expect(err).NotTo(HaveOccurred())
		Expect(loginToken).NotTo(Equal(sessionToken))

		By("logging out and invalidating the session")
		Expect(env.svc.Logout(env.ctx, loginToken)).To(Succeed())
		_, err = env.svc.GetSessionUser(env.ctx, loginToken)
		expectCode(err, identity.CodeUnauthorized)

		By("leaving the other session untouched")
		_, err = env.svc.GetSessionUser(env.ctx, sessionToken)
		Expect(err).NotTo(HaveOccurred())
	})

	It("treats repeated verification as success without a new mail", func() {
		Expect(env.svc.RegisterLocal(env.ctx, email, password)).To(Succeed())
		token := verificationToken()

		_, err := env.svc.VerifyEmail(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.svc.VerifyEmail(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.mailer.count()).To(Equal(1))
	})

	It("rejects a second registration for the same email", func() {
		Expect(env.svc.RegisterLocal(env.ctx, email, password)).To(Succeed())

		err := env.svc.RegisterLocal(env.ctx, "ALICE@example.com", password)
		expectCode(err, identity.CodeEmailConflict)
	})

	It("rejects login with the wrong password", func() {
		Expect(env.svc.RegisterLocal(env.ctx, email, password)).To(Succeed())
		_, err := env.svc.VerifyEmail(env.ctx, verificationToken())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.svc.LoginLocal(env.ctx, email, "not-the-password")
		expectCode(err, identity.CodeInvalidCredentials)
	})
})

var _ = Describe("Password reset", func() {
	const (
		email       = "bob@example.com"
		oldPassword = "Original-pass-1"
		newPassword = "Replacement-pass-2"
	)

	BeforeEach(func() {
		env.resetDatabase()
		Expect(env.svc.RegisterLocal(env.ctx, email, oldPassword)).To(Succeed())
		_, err := env.svc.VerifyEmail(env.ctx, verificationToken())
		Expect(err).NotTo(HaveOccurred())
	})

	It("replaces the password and keeps existing sessions active", func() {
		sessionToken, err := env.svc.LoginLocal(env.ctx, email, oldPassword)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.svc.ResetPassword(env.ctx, email, oldPassword, newPassword)).To(Succeed())

		_, err = env.svc.LoginLocal(env.ctx, email, oldPassword)
		expectCode(err, identity.CodeInvalidCredentials)

		_, err = env.svc.LoginLocal(env.ctx, email, newPassword)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.svc.GetSessionUser(env.ctx, sessionToken)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a reset with the wrong old password", func() {
		err := env.svc.ResetPassword(env.ctx, email, "wrong-old-password", newPassword)
		expectCode(err, identity.CodeInvalidCredentials)
	})

	It("rejects a reset for an unknown email", func() {
		err := env.svc.ResetPassword(env.ctx, "nobody@example.com", oldPassword, newPassword)
		expectCode(err, identity.CodeNotRegisteredWithPassword)
	})
})

var _ = Describe("Google sign-in", func() {
	profile := identity.OAuthProfile{
		Email:       "carol@example.com",
		Subject:     "google-subject-123",
		DisplayName: "Carol",
		AvatarURL:   "https://example.com/carol.png",
	}

	BeforeEach(func() {
		env.resetDatabase()
	})

	It("creates a verified account on first sign-in", func() {
		token, err := env.svc.LoginOrRegisterOAuth(env.ctx, profile)
		Expect(err).NotTo(HaveOccurred())

		view, err := env.svc.GetSessionUser(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Email).To(Equal(profile.Email))
		Expect(view.Username).To(Equal(profile.DisplayName))
		Expect(view.Provider).To(Equal(identity.ProviderGoogle))
		Expect(view.IsVerified).To(BeTrue())
		Expect(env.mailer.count()).To(BeZero())
	})

	It("logs into the same account on repeat sign-ins", func() {
		first, err := env.svc.LoginOrRegisterOAuth(env.ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		second, err := env.svc.LoginOrRegisterOAuth(env.ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).NotTo(Equal(first))

		firstView, err := env.svc.GetSessionUser(env.ctx, first)
		Expect(err).NotTo(HaveOccurred())
		secondView, err := env.svc.GetSessionUser(env.ctx, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(secondView.Email).To(Equal(firstView.Email))
	})

	It("refuses to take over a password account with the same email", func() {
		Expect(env.svc.RegisterLocal(env.ctx, profile.Email, "A-local-pass-1")).To(Succeed())

		_, err := env.svc.LoginOrRegisterOAuth(env.ctx, profile)
		expectCode(err, identity.CodeProviderConflict)
	})

	It("refuses password login for a google account", func() {
		_, err := env.svc.LoginOrRegisterOAuth(env.ctx, profile)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.svc.LoginLocal(env.ctx, profile.Email, "whatever-password")
		expectCode(err, identity.CodeInvalidCredentials)
	})
})

var _ = Describe("Session expiry", func() {
	const (
		email    = "dave@example.com"
		password = "Daves-pass-9"
	)

	BeforeEach(func() {
		env.resetDatabase()
		Expect(env.svc.RegisterLocal(env.ctx, email, password)).To(Succeed())
	})

	It("rejects a session whose expiry has passed", func() {
		token, err := env.svc.VerifyEmail(env.ctx, verificationToken())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.pool.Exec(env.ctx,
			`UPDATE user_session SET expires_at = NOW() - INTERVAL '1 minute'`)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.svc.GetSessionUser(env.ctx, token)
		expectCode(err, identity.CodeSessionExpired)
	})

	It("resends a verification mail for an unverified session", func() {
		token, err := env.svc.VerifyEmail(env.ctx, verificationToken())
		Expect(err).NotTo(HaveOccurred())

		// Flip the credential back to unverified to exercise the resend.
		_, err = env.pool.Exec(env.ctx,
			`UPDATE user_authentication SET is_verified = FALSE WHERE provider = 'local'`)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.svc.ResendVerification(env.ctx, token)).To(Succeed())
		Expect(env.mailer.count()).To(Equal(2))
	})
})
