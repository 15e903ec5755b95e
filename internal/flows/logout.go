package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	VerifyRefresh RefreshVerifier
	SessionStore  SessionStore
}

// LogoutResult reports what logout did. Callers never surface Err.
type LogoutResult struct {
	UserID string
	// Skipped is true when the token could not be attributed to a principal.
	Skipped bool
	Err     error
}

// RunLogout deletes the session of the principal named by refreshToken.
//
// The token only needs a valid signature and kind. An expired or already
// rotated token still identifies whose session to end.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	userID, err := deps.VerifyRefresh(refreshToken)
	if err != nil || userID == "" {
		return LogoutResult{Skipped: true, Err: err}
	}

	return LogoutResult{
		UserID: userID,
		Err:    deps.SessionStore.Delete(ctx, userID),
	}
}
