package goIdentity

import (
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
	"github.com/MrEthical07/goIdentity/internal/security"
	"github.com/MrEthical07/goIdentity/jwt"
)

// Audit types re-exported from internal/audit so callers never import an
// internal path.
type (
	AuditEvent     = internalaudit.Event
	AuditSink      = internalaudit.Sink
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
)

// NewChannelSink returns a sink whose events are readable from a channel.
var NewChannelSink = internalaudit.NewChannelSink

// NewJSONWriterSink returns a sink writing one JSON event per line.
var NewJSONWriterSink = internalaudit.NewJSONWriterSink

// Metric types re-exported from internal/metrics.
type (
	MetricID        = internalmetrics.MetricID
	MetricsSnapshot = internalmetrics.Snapshot
)

// SecurityReport is the engine's effective security posture, derived from
// configuration by [Engine.SecurityReport].
type SecurityReport = security.Report

// SessionClaims is the decoded payload of a verified session token.
type SessionClaims = jwt.SessionClaims

// UserView is the externally visible projection of a user record. It never
// carries the password hash or TOTP secret.
type UserView struct {
	Username  string
	Active    bool
	Banned    bool
	CreatedAt time.Time
	Metadata  map[string]map[string]string
}

// RegistrationResult is returned by [Engine.Register]. When activation is
// required the session token is empty and RequiresActivation is true.
type RegistrationResult struct {
	User               *UserView
	Token              string
	ExpiresAt          time.Time
	RequiresActivation bool
}

// ChallengeResult reports a challenge issuance. Queued is true when a mail
// was handed to the deliverer; enumeration-safe flows report Queued even
// when nothing was sent.
type ChallengeResult struct {
	Queued bool
}

// LoginResult is returned by [Engine.Login]. Exactly one of Token and
// MFATicket is set: a ticket means the password step passed and a code
// confirmation via [Engine.ConfirmLoginMFA] must follow.
type LoginResult struct {
	Token       string
	ExpiresAt   time.Time
	MFARequired bool
	MFATicket   string
}

// SessionInfo is the introspection view of a token, including tokens that
// no longer verify.
type SessionInfo struct {
	Active    bool
	Username  string
	Audience  string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]string
	// Reason explains Active=false: "expired", "revoked", "banned" or
	// "invalid".
	Reason string
}

// MetadataUpdate describes one atomic metadata change within a single
// audience. A key present in both Add and Remove is removed.
type MetadataUpdate struct {
	Add    map[string]string
	Remove []string
}

// BanAction is the explicit discriminator required by [Engine.SetBanned].
// The zero value is invalid: callers must state ban or unban.
type BanAction int

const (
	BanActionUnspecified BanAction = iota
	BanActionBan
	BanActionUnban
)

// TOTPEnrollment is returned by [Engine.BeginTOTPEnrollment]. The secret is
// shown to the user exactly once; the engine stores it unconfirmed until
// the first valid code arrives.
type TOTPEnrollment struct {
	Secret string
	// URI is the otpauth:// provisioning string for authenticator apps.
	URI string
}
