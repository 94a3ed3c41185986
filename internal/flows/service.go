package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Validate.Codec != nil
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Validate(ctx context.Context, accessToken string) ValidateResult {
	return RunValidate(ctx, accessToken, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, refreshToken, accessToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, accessToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	return RunLogoutAll(ctx, principalID, s.deps.Logout)
}

func (s Service) RequestEmailVerification(ctx context.Context, principalID string) EmailVerificationResult {
	return RunRequestEmailVerification(ctx, principalID, s.deps.EmailVerification)
}

func (s Service) ConfirmEmailVerification(ctx context.Context, verifyToken, code string) EmailVerificationResult {
	return RunConfirmEmailVerification(ctx, verifyToken, code, s.deps.EmailVerification)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) PasswordResetResult {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) VerifyPasswordResetCode(ctx context.Context, email, code string) PasswordResetResult {
	return RunVerifyPasswordResetCode(ctx, email, code, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, resetToken, newPassword string) PasswordResetResult {
	return RunResetPassword(ctx, resetToken, newPassword, s.deps.PasswordReset)
}
