package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSessionName is the cookie name used when none is configured.
const DefaultSessionName = "stratatrack-session"

// Session value keys.
const (
	keySignedIn = "signed_in"
	keyUserID   = "user_id"
	keyRole     = "role"
	keyToken    = "session_token"
)

// minKeyLength is the shortest session or JWT key accepted in production.
const minKeyLength = 32

// placeholderKeyWords mark keys copied from sample configs.
var placeholderKeyWords = []string{
	"dev-only", "change-me", "changeme", "placeholder", "default",
	"example", "insecure", "test-key", "secret123", "password",
}

// SessionConfigError reports an unusable session or token key.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string { return e.Message }

// SessionManager owns the cookie store used by browser clients.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	logger  *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds a cookie session store. With secure set (HTTPS
// deployments) a short or placeholder key is an error; otherwise it is
// only logged. An empty name uses DefaultSessionName.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide at least 32 random characters"}
	}
	if weakKey(sessionKey) {
		if secure {
			return nil, &SessionConfigError{Message: "session key is too weak for production; provide at least 32 random characters"}
		}
		logger.Warn("weak session key; do not use it in production",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Bool("secure", secure))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// weakKey reports whether key is too short or looks like a placeholder.
func weakKey(key string) bool {
	if len(key) < minKeyLength {
		return true
	}
	lower := strings.ToLower(key)
	for _, w := range placeholderKeyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// SessionName returns the cookie name.
func (sm *SessionManager) SessionName() string { return sm.name }

// SetUserFetcher installs the lookup LoadSessionUser uses. Call it once the
// database is connected.
func (sm *SessionManager) SetUserFetcher(uf UserFetcher) { sm.fetcher = uf }

// GenerateSessionToken returns 32 random bytes, URL-safe base64 encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateSession signs the user in on this browser. An empty token gets a
// freshly generated one.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role, token string) error {
	if token == "" {
		var err error
		if token, err = GenerateSessionToken(); err != nil {
			return err
		}
	}

	// A cookie that fails to decode is replaced rather than reported.
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[keySignedIn] = true
	sess.Values[keyUserID] = userID.Hex()
	sess.Values[keyRole] = role
	sess.Values[keyToken] = token
	return sess.Save(r, w)
}

// DestroySession clears the session and expires its cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}
	clearSignIn(sess)
	delete(sess.Values, keyRole)
	delete(sess.Values, keyToken)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

func clearSignIn(sess *sessions.Session) {
	sess.Values[keySignedIn] = false
	delete(sess.Values, keyUserID)
}

// LoadSessionUser puts the cookie session's user in context. Requests that
// presented a bearer token, valid or not, never fall back to the cookie:
// they skip CSRF checks and must not act as the browser's user. A session
// whose user is gone or disabled is signed out.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsBearerRequest(r) || sm.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.logSessionError(r, err)
		}

		userID := stringValue(sess, keyUserID)
		if signedIn, _ := sess.Values[keySignedIn].(bool); !signedIn || userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		u := sm.fetcher.FetchUser(r.Context(), userID)
		if u == nil {
			sm.logger.Info("session dropped: user missing or disabled",
				zap.String("user_id", userID),
				zap.String("path", r.URL.Path))
			clearSignIn(sess)
			_ = sess.Save(r, w)
			next.ServeHTTP(w, r)
			return
		}
		u.Token = stringValue(sess, keyToken)
		next.ServeHTTP(w, withUser(r, u))
	})
}

func stringValue(sess *sessions.Session, key string) string {
	s, _ := sess.Values[key].(string)
	return s
}

// sessionFault describes why a session cookie could not be read.
type sessionFault struct {
	category string
	level    zapcore.Level
}

// classifySessionError maps a cookie decode failure to a log category and
// level. Expiry is routine; a bad MAC may be tampering.
func classifySessionError(err error) sessionFault {
	var scErr securecookie.Error
	if !errors.As(err, &scErr) || !scErr.IsDecode() {
		return sessionFault{"backend", zapcore.ErrorLevel}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return sessionFault{"expired", zapcore.DebugLevel}
	case strings.Contains(msg, "mac"), strings.Contains(msg, "hash"):
		return sessionFault{"mac_invalid", zapcore.WarnLevel}
	case strings.Contains(msg, "decrypt"):
		return sessionFault{"decrypt_failed", zapcore.InfoLevel}
	case strings.Contains(msg, "base64"), strings.Contains(msg, "decode"):
		return sessionFault{"decode_failed", zapcore.InfoLevel}
	default:
		return sessionFault{"decode_other", zapcore.InfoLevel}
	}
}

func (sm *SessionManager) logSessionError(r *http.Request, err error) {
	f := classifySessionError(err)
	fields := []zap.Field{
		zap.String("category", f.category),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
	if f.level >= zapcore.WarnLevel {
		fields = append(fields,
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()))
	}
	if ce := sm.logger.Check(f.level, "unreadable session cookie, starting fresh"); ce != nil {
		ce.Write(fields...)
	}
}
