// internal/app/bootstrap/startup.go
package bootstrap

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Username / username: The handle users sign in with

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/authutil"
	"github.com/dalemusser/stratatrack/internal/app/system/demo"
	"github.com/dalemusser/stratatrack/internal/app/system/tasks"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// oauthStateCleanupInterval is how often expired OAuth state tokens are removed.
const oauthStateCleanupInterval = 15 * time.Minute

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting.
//
// The context will be cancelled if the process is asked to shut down while
// Startup is running; honor it in any long-running work.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	// Seed admin user if configured
	if appCfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, deps, appCfg, logger); err != nil {
			logger.Error("failed to seed admin user", zap.Error(err))
			return err
		}
	}

	// Start background task runner
	startTaskRunner(deps, appCfg, logger)

	return nil
}

// taskRunner is the global task runner instance, used by the admin job
// routes and for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(deps DBDeps, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	demoSvc := demo.New(deps.MongoDatabase, appCfg.DemoUserTTL, logger)
	taskRunner.Register(tasks.DemoUserCleanupJob(demoSvc, appCfg.DemoCleanupInterval, logger))

	states := oauthstate.New(deps.MongoDatabase, appCfg.OAuthStateTTL)
	taskRunner.Register(tasks.OAuthStateCleanupJob(states, oauthStateCleanupInterval, logger))

	taskRunner.Start()
}

// ensureAdminUser makes sure the account with the configured email is an
// admin. An existing account is promoted; otherwise a new password account
// is created, which needs seed_admin_password.
func ensureAdminUser(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, appCfg.SeedAdminEmail)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("user_id", existing.ID.Hex()))
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin",
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return err
	}

	if appCfg.SeedAdminPassword == "" {
		return errors.New("seed_admin_password is required to create the seeded admin")
	}
	creds, err := authutil.ResolveCredentials(authutil.CredentialInput{
		Name:     "Admin",
		Username: appCfg.SeedAdminUsername,
		Email:    appCfg.SeedAdminEmail,
		Password: appCfg.SeedAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("seeded admin: %w", err)
	}

	created, err := users.Create(ctx, models.User{
		Name:         creds.Name,
		Username:     creds.Username,
		Email:        creds.Email,
		AuthMethod:   models.AuthPassword,
		PasswordHash: creds.PasswordHash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return err
	}

	logger.Info("created admin user",
		zap.String("username", created.Username),
		zap.String("user_id", created.ID.Hex()))
	return nil
}
