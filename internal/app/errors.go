package app

import "errors"

// Sentinel kinds for app errors.
var (
	// ErrSyncInProgress means a pass for the scope is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoChannel means no publish channel was configured for the scope.
	ErrNoChannel = errors.New("no leaderboard channel configured")

	// ErrArtifactNotFound is reported by a Messenger when the tracked
	// message no longer exists.
	ErrArtifactNotFound = errors.New("leaderboard message not found")

	// ErrForbidden is reported by a Messenger when the bot may not post
	// or edit in the configured channel.
	ErrForbidden = errors.New("missing channel permissions")
)
