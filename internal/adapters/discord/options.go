package discord

import "github.com/varrock/clogboard/pkg/logger"

// MessengerOption applies a configuration option to the Messenger.
type MessengerOption func(*Messenger)

// WithMessengerLogger sets a custom logger for the messenger.
func WithMessengerLogger(log logger.Logger) MessengerOption {
	return func(m *Messenger) {
		if log != nil {
			m.log = log
		}
	}
}

// CommandsOption applies a configuration option to the Commands handler.
type CommandsOption func(*Commands)

// WithAdminRole grants admin command access to holders of the role.
func WithAdminRole(roleID string) CommandsOption {
	return func(c *Commands) { c.adminRoleID = roleID }
}

// WithAdminUser grants admin command access to one user id.
func WithAdminUser(userID string) CommandsOption {
	return func(c *Commands) { c.adminUserID = userID }
}

// WithCommandsLogger sets a custom logger for the command handlers.
func WithCommandsLogger(log logger.Logger) CommandsOption {
	return func(c *Commands) {
		if log != nil {
			c.log = log
		}
	}
}
